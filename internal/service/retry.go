package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// runTx executes fn in a fresh unit of work, retrying the whole unit while
// it loses optimistic-concurrency races. Other errors return immediately.
func runTx(ctx context.Context, store Store, maxRetries int, op string, fn func(tx Tx) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 10 * time.Millisecond
	eb.MaxInterval = 200 * time.Millisecond
	eb.MaxElapsedTime = 2 * time.Second

	attempt := func() error {
		err := store.InTx(ctx, fn)
		if err == nil {
			return nil
		}
		err = storeErr(err, op)
		if errors.Is(err, ErrConflictRetry) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		log.Debug().Err(err).Str("op", op).Dur("wait", wait).Msg("Retrying after conflict")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxRetries)), ctx)
	return backoff.RetryNotify(attempt, b, notify)
}
