package bridge

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Submitter schedules a task and reports when it has finished.
type Submitter interface {
	Submit(ctx context.Context, fn func()) (<-chan struct{}, error)
}

// Deliver is the callback a Source invokes for every received message.
type Deliver func(ctx context.Context, msg Message)

// Dispatch returns a Deliver that runs handler on pool and waits for it to
// finish, so a Source's receive loop returns only after in-flight messages
// are done. Handling is detached from ctx cancellation; shutdown stops
// intake, it does not abort a message halfway through its calls.
func Dispatch(pool Submitter, handler MessageHandler, logger zerolog.Logger) Deliver {
	return func(ctx context.Context, msg Message) {
		work := context.WithoutCancel(ctx)
		done, err := pool.Submit(ctx, func() {
			if err := handler.Handle(work, msg); err != nil && !errors.Is(err, ErrIgnored) {
				logger.Debug().Err(err).Str("msg_id", msg.ID).Str("outcome", Outcome(err)).Msg("message not delivered")
			}
		})
		if err != nil {
			logger.Warn().Err(err).Str("msg_id", msg.ID).Msg("message rejected during shutdown")
			msg.Nack()
			return
		}
		<-done
	}
}
