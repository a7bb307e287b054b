package dispatch

import (
	"context"

	"github.com/MarcinPiech/DHLAI/core/factory"
	"github.com/MarcinPiech/DHLAI/core/model"
)

// OutboundMessage is what the engine hands to a relay.
type OutboundMessage struct {
	DraftID     int64
	FromAddress string
	FromName    string
	To          string
	ToName      string
	CC          []string
	Subject     string
	HTML        string
	Plain       string
	Attachments []model.Attachment
	Headers     map[string]string
}

// Relay delivers one message and returns the Message-ID it was sent with.
type Relay interface {
	Send(ctx context.Context, msg *OutboundMessage) (string, error)
}

var relayRegistry = factory.NewRegistry[Relay]()

// RegisterRelay adds a relay factory identified by name.
func RegisterRelay(name string, f factory.Factory[Relay]) error {
	return relayRegistry.Register(name, f)
}

// NewRelay creates the relay described by cfg.
func NewRelay(cfg factory.ModuleConfig) (Relay, error) {
	return relayRegistry.Create(cfg)
}
