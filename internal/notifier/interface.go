package notifier

import (
	"context"

	"github.com/newthinker/stocktrack/internal/core"
)

// Notifier delivers an alert to a messaging endpoint. Delivery is
// confirmed at the HTTP (or SMTP) level only.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Send delivers alert.Message; structured notifiers may also use the
	// alert fields.
	Send(ctx context.Context, alert core.Alert) error
}
