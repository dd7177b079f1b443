package harvest

import (
	"context"
	"errors"
	"time"

	"github.com/go-pkgz/repeater/v2"

	"github.com/2003riku/static-legal-rss/pkg/discovery"
	"github.com/2003riku/static-legal-rss/pkg/render"
)

// errStop tells repeater to give up, the real error is returned to the caller
var errStop = errors.New("stop retry")

// NewRetry makes a bounded retry with exponential backoff between delay and maxDelay.
// Exhausted fetch errors end the loop at once.
func NewRetry(attempts int, delay, maxDelay time.Duration) discovery.Retry {
	if attempts < 1 {
		attempts = 1
	}
	if maxDelay < delay {
		maxDelay = delay
	}
	return func(ctx context.Context, fn func() error) error {
		var final error
		rep := repeater.NewBackoff(attempts, delay, repeater.WithMaxDelay(maxDelay))
		err := rep.Do(ctx, func() error {
			err := fn()
			if errors.Is(err, render.ErrExhausted) {
				final = err
				return errStop
			}
			return err
		}, errStop)
		if final != nil {
			return final
		}
		return err
	}
}
