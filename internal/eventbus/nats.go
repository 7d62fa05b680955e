package eventbus

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kandev/orchestrator/internal/logging"
)

// NATSConfig configures the optional distributed ObserverBus backend.
type NATSConfig struct {
	URL            string `mapstructure:"url"`
	Subject        string `mapstructure:"subject"`
	ClientID       string `mapstructure:"client_id"`
	MaxReconnects  int    `mapstructure:"max_reconnects"`
}

// NATSBridge wraps a Bus and additionally republishes every ActivityEvent to
// a NATS subject, so a live-activity dashboard running in another process
// can subscribe instead of connecting directly to this orchestrator. It is
// a decorator, not a replacement backend: the wrapped Bus still owns
// observer fan-out and the local LiveActivityChannel.
type NATSBridge struct {
	Bus
	conn    *nats.Conn
	subject string
	logger  *logging.Logger
}

// NewNATSBridge connects to NATS and starts forwarding activity events from
// inner onto cfg.Subject. The connection is closed when Close is called.
func NewNATSBridge(inner Bus, cfg NATSConfig, log *logging.Logger) (*NATSBridge, error) {
	if log == nil {
		log = logging.Default()
	}
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
	}
	if cfg.ClientID != "" {
		opts = append(opts, nats.Name(cfg.ClientID))
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}

	bridge := &NATSBridge{
		Bus:     inner,
		conn:    conn,
		subject: cfg.Subject,
		logger:  log.WithFields(zap.String("component", "eventbus.nats")),
	}
	go bridge.forward()
	return bridge, nil
}

func (n *NATSBridge) forward() {
	for ev := range n.Bus.Activity() {
		payload, err := json.Marshal(ev)
		if err != nil {
			n.logger.Warn("failed to marshal activity event", zap.Error(err))
			continue
		}
		if err := n.conn.Publish(n.subject, payload); err != nil {
			n.logger.Warn("failed to publish activity event to nats", zap.Error(err))
		}
	}
}

// Close drains the forwarding goroutine's source channel by closing the
// wrapped Bus first, then tears down the NATS connection.
func (n *NATSBridge) Close() error {
	err := n.Bus.Close()
	n.conn.Close()
	return err
}
