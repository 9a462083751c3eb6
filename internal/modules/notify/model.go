// README: Notification message and sender contract.
package notify

import (
	"context"
	"errors"
	"sync"

	"roadside/internal/types"
)

const (
	EventNewOffer         = "new_offer"
	EventBookingConfirmed = "booking_confirmed"
)

type Message struct {
	Recipient   types.ID
	DeviceToken string
	Event       string
	Title       string
	Body        string
	Data        map[string]string
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Multi delivers to every notifier concurrently and joins their errors,
// so one slow channel does not spend another's deadline.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	errs := make([]error, len(m))
	var wg sync.WaitGroup
	for i, n := range m {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = n.Notify(ctx, msg)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
