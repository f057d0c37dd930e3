package notify

import (
	"context"

	"github.com/mentalapp/mentalapp-api/internal/domain"
)

// Notifier dispatches outbound account events. Callers treat delivery as
// fire-and-forget; a failed dispatch never fails the request that caused it.
type Notifier interface {
	VerificationRequested(ctx context.Context, user domain.User) error
}

// Noop discards every event. Used when no broker is configured and in tests.
type Noop struct{}

func (Noop) VerificationRequested(context.Context, domain.User) error { return nil }
