package display

import (
	"context"
	"errors"

	"github.com/mcoot/rollcall/internal/model"
)

// ErrMessageNotFound is returned by a Target when a reference no longer exists
var ErrMessageNotFound = errors.New("display message not found")

// Target is where rendered messages are shown. Every display call site
// (roster lists, notices, stats report) goes through it.
type Target interface {
	Send(ctx context.Context, channel model.ChannelID, msg model.Message) (model.MessageRef, error)
	Edit(ctx context.Context, ref model.MessageRef, msg model.Message) error
	Delete(ctx context.Context, ref model.MessageRef) error
}

// Notice builds a single-line message for coordinator feedback
func Notice(text string) model.Message {
	return model.Message{Lines: []string{text}}
}

// IsNotice reports whether msg is coordinator feedback rather than a
// rendered list. Lists always carry a title.
func IsNotice(msg model.Message) bool {
	return msg.Title == ""
}
