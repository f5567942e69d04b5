package adapter

import "context"

// Mailer delivers notification email. The core treats delivery as
// fire-and-forget: failures are logged, never surfaced, and never block a
// purchase transition.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
