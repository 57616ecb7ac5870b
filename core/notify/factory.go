package notify

import "github.com/kilianp07/fleetassign/core/factory"

var registry = factory.NewRegistry[Notifier]()

// RegisterNotifier adds a notifier factory identified by name.
func RegisterNotifier(name string, f factory.Factory[Notifier]) error {
	return registry.Register(name, f)
}

// NewNotifier builds the notifiers described by cfgs. Several sinks are
// combined with Multi.
func NewNotifier(cfgs []factory.ModuleConfig) (Notifier, error) {
	if len(cfgs) == 0 {
		return Nop{}, nil
	}
	ns, err := registry.CreateAll(cfgs)
	if err != nil {
		return nil, err
	}
	if len(ns) == 1 {
		return ns[0], nil
	}
	return Multi(ns), nil
}
