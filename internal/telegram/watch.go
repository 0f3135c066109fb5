package telegram

import (
	"context"

	"github.com/rewired-gh/btcview/internal/controller"
	"github.com/rewired-gh/btcview/internal/logger"
)

// Notifier receives refresh failure transitions.
type Notifier interface {
	SendError(err error) error
	SendRecovery(failureCount int) error
}

// WatchRefreshes reports the first failure of each failure streak and the
// recovery that ends it. It returns when states closes or ctx ends.
func WatchRefreshes(ctx context.Context, states <-chan controller.State, n Notifier) {
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			switch {
			case st.ConsecutiveFailures > 0 && failures == 0 && st.Err != nil:
				if err := n.SendError(st.Err); err != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", err)
				}
			case st.ConsecutiveFailures == 0 && failures > 0:
				if err := n.SendRecovery(failures); err != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", err)
				}
			}
			failures = st.ConsecutiveFailures
		}
	}
}
