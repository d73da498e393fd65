package cfddns

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultInterval is used by RunDaemon when no positive interval is given.
const DefaultInterval = 30 * time.Second

// Reconciler is implemented by *Client.
type Reconciler interface {
	Reconcile(ctx context.Context) Report
}

// RunDaemon runs a reconciliation pass immediately and then once per interval,
// blocking until ctx is cancelled.
//
// Passes never overlap: a tick that arrives while a pass is running is dropped.
// A pass that is already running when ctx is cancelled sees the cancellation on its next outbound call.
// RunDaemon returns nil once it has stopped.
func RunDaemon(ctx context.Context, reconciler Reconciler, interval time.Duration, logger logrus.FieldLogger) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = discard
	}
	logger.WithField("interval", interval).Info("started DNS updater")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for ctx.Err() == nil {
		reconciler.Reconcile(ctx)
		logger.Debugf("waiting %s for next check", interval)

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
	logger.Info("stopped DNS updater")
	return nil
}
