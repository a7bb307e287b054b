package mail

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MarcinPiech/DHLAI/core/dispatch"
	"github.com/MarcinPiech/DHLAI/core/logger"
)

// LogRelay writes messages to the log instead of sending them.
type LogRelay struct {
	log logger.Logger
}

func NewLogRelay(log logger.Logger) *LogRelay { return &LogRelay{log: log} }

func (r *LogRelay) Send(_ context.Context, msg *dispatch.OutboundMessage) (string, error) {
	id := fmt.Sprintf("%s@localhost", uuid.NewString())
	r.log.Infof("log relay: draft %d to %s cc=%v subject=%q attachments=%d message_id=%s",
		msg.DraftID, msg.To, msg.CC, msg.Subject, len(msg.Attachments), id)
	return id, nil
}
