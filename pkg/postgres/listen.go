package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ChangeChannel is the notification channel the submission trigger publishes to
const ChangeChannel = "submission_changes"

// Delay before re-acquiring the listen connection. It doubles after each failure.
const (
	listenRetryMin = time.Second
	listenRetryMax = time.Minute
)

// ChangeNotification is the payload of a submission_changes notification
type ChangeNotification struct {
	CollectionID string `json:"collectionId"`
	SubmissionID string `json:"submissionId"`
	Type         string `json:"type"`
	State        string `json:"state"`
}

// ListenForChanges holds one pooled connection in LISTEN mode and calls fn for every write to the
// submission table, from this process or any other. It blocks until ctx is cancelled. A lost
// connection is logged and re-acquired; it never ends the listener.
func (d *DB) ListenForChanges(ctx context.Context, fn func(ChangeNotification)) error {
	return retryListen(ctx, d.logger, func(ctx context.Context, ready func()) error {
		return d.listenOnce(ctx, ready, fn)
	}, time.After)
}

type listenFunc func(ctx context.Context, ready func()) error

// retryListen runs listen until ctx is done. The retry delay resets once listen calls ready.
func retryListen(ctx context.Context, logger *zap.Logger, listen listenFunc, after func(time.Duration) <-chan time.Time) error {
	delay := listenRetryMin
	for {
		err := listen(ctx, func() { delay = listenRetryMin })
		if ctx.Err() != nil {
			return nil
		}

		logger.Warn("Change listener lost its connection, retrying",
			zap.Error(err),
			zap.Duration("retry_in", delay))

		select {
		case <-ctx.Done():
			return nil
		case <-after(delay):
		}
		delay = min(delay*2, listenRetryMax)
	}
}

func (d *DB) listenOnce(ctx context.Context, ready func(), fn func(ChangeNotification)) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ChangeChannel, err)
	}
	ready()

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("failed waiting for notification: %w", err)
		}

		var change ChangeNotification
		if err := json.Unmarshal([]byte(notification.Payload), &change); err != nil {
			d.logger.Warn("Ignoring malformed change notification",
				zap.String("payload", notification.Payload),
				zap.Error(err))
			continue
		}
		fn(change)
	}
}
