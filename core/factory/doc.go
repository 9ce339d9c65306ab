// Package factory builds pluggable modules, such as metric sinks, from
// configuration entries of the form {type, conf}. Each module type registers
// a constructor that decodes its conf map into a typed struct with Decode:
//
//	reg := factory.NewRegistry[metrics.MetricsSink]()
//	_ = reg.Register("nats", func(conf map[string]any) (metrics.MetricsSink, error) {
//		var c nats.Config
//		if err := factory.Decode(conf, &c); err != nil {
//			return nil, err
//		}
//		return nats.NewSink(c)
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "nats", Conf: map[string]any{"subject": "heat.dispatch"}})
package factory
