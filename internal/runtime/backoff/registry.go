package backoff

import (
	"fmt"
	"sort"
	"sync"

	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
)

// Options carries the settings a policy constructor may use.
type Options struct {
	DefaultTimeout *int
}

// Constructor builds a named policy.
type Constructor func(Options) Policy

var (
	registryMu   sync.RWMutex
	constructors = map[string]Constructor{
		"naive": func(o Options) Policy {
			return Naive{Default: o.DefaultTimeout}
		},
		"exponential": func(Options) Policy {
			return Exponential{}
		},
	}
)

// Register adds or replaces a named policy constructor.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	constructors[name] = ctor
}

// New builds the policy registered under name.
func New(name string, opts Options) (Policy, error) {
	registryMu.RLock()
	ctor, ok := constructors[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", errspkg.ErrUnknownPolicy, name)
	}
	return ctor(opts), nil
}

// Names lists the registered policy names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
