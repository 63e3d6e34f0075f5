// internal/domain/push/notifier.go
package push

import (
	"context"
	"errors"
	"fmt"
)

// ErrDeliveryFailed is returned when the endpoint answered but did not accept the message.
var ErrDeliveryFailed = errors.New("push delivery failed")

// Notifier delivers a single message to an external push endpoint.
// This keeps the dispatcher independent of the transport.
type Notifier interface {
	Deliver(ctx context.Context, title, body string) error
}

// Fanout delivers to every notifier and succeeds when at least one of them did.
type Fanout []Notifier

func (f Fanout) Deliver(ctx context.Context, title, body string) error {
	if len(f) == 0 {
		return fmt.Errorf("%w: no notifiers configured", ErrDeliveryFailed)
	}
	var errs []error
	for _, n := range f {
		if err := n.Deliver(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(f) {
		return errors.Join(errs...)
	}
	return nil
}
