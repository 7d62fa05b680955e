package eventbus

import (
	"fmt"

	"github.com/kandev/orchestrator/internal/config"
	"github.com/kandev/orchestrator/internal/logging"
)

// Provide constructs the ObserverBus according to cfg.Driver: "memory" (the
// default, always available) or "nats" (in-memory bus plus a forwarding
// bridge to a NATS subject for out-of-process dashboards). The returned
// cleanup closes the bus and, for the nats driver, the underlying
// connection.
func Provide(cfg config.EventBusConfig, log *logging.Logger) (Bus, func() error, error) {
	mem := New(log, cfg.LiveActivityCapacity)

	switch cfg.Driver {
	case "", "memory":
		return mem, mem.Close, nil
	case "nats":
		bridge, err := NewNATSBridge(mem, NATSConfig{
			URL:           cfg.NATSURL,
			Subject:       "orchestrator.activity",
			ClientID:      cfg.NATSClientID,
			MaxReconnects: cfg.NATSMaxReconnects,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats event bus: %w", err)
		}
		return bridge, bridge.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown event bus driver %q", cfg.Driver)
	}
}
