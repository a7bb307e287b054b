package mail

import (
	"github.com/MarcinPiech/DHLAI/core/dispatch"
	"github.com/MarcinPiech/DHLAI/core/factory"
	"github.com/MarcinPiech/DHLAI/infra/logger"
)

// init registers the built-in relays.
func init() {
	_ = dispatch.RegisterRelay("smtp", func(conf map[string]any) (dispatch.Relay, error) {
		var c SMTPConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSMTPRelay(c, logger.New("smtp"))
	})

	_ = dispatch.RegisterRelay("log", func(map[string]any) (dispatch.Relay, error) {
		return NewLogRelay(logger.New("relay")), nil
	})
}
