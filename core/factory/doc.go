// Package factory provides a small generic registry used to instantiate
// modules from configuration. A module is selected by a type string and
// configured by a map of raw settings; factories decode the settings into
// typed structs and return the concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[dispatch.Relay]()
//	reg.Register("smtp", func(conf map[string]any) (dispatch.Relay, error) {
//	    var c struct{ Host string `json:"host"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newSMTPRelay(c.Host)
//	})
//	r, err := reg.Create(factory.ModuleConfig{Type: "smtp", Conf: map[string]any{"host": "smtp.example.com"}})
package factory
