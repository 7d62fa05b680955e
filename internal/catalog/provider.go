package catalog

import "github.com/kandev/orchestrator/internal/logging"

// Provide constructs a Registry preloaded with the bundled default catalog.
// It follows the constructor-with-cleanup convention used for the other
// stateful components in this module; the Registry itself owns no resources
// that need releasing, so cleanup is a no-op, but the signature stays
// consistent so callers can wire it interchangeably with the rest.
func Provide(log *logging.Logger) (*Registry, func() error, error) {
	r := New(log)
	if err := r.LoadDefaults(); err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return nil }
	return r, cleanup, nil
}
