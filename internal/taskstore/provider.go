package taskstore

import (
	"fmt"

	"github.com/kandev/orchestrator/internal/config"
)

// Provide constructs the TaskManager backend selected by cfg.Driver.
func Provide(cfg config.TaskStoreConfig) (Manager, func() error, error) {
	switch cfg.Driver {
	case "", "memory":
		m := NewMemoryManager()
		return m, m.Close, nil
	case "sqlite":
		m, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	case "postgres":
		m, err := OpenPostgres(cfg.PostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown task store driver %q", cfg.Driver)
	}
}
