// Package factory instantiates pluggable modules from configuration. A module
// is described by a type string and a map of raw settings; the registered
// factory decodes the settings into its own struct and returns the concrete
// implementation.
//
//	reg := factory.NewRegistry[notify.Notifier]()
//	reg.MustRegister("log", func(conf map[string]any) (notify.Notifier, error) {
//	    var c struct{ Level string `json:"level"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return notify.NewLogNotifier(log), nil
//	})
//	n, err := reg.Create(factory.ModuleConfig{Type: "log"})
package factory
