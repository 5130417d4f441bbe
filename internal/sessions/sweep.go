package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// RunSweeper drops expired states on the cron schedule expr until ctx is
// done. An invalid expression is reported before any sweep runs.
func (m *Manager) RunSweeper(ctx context.Context, expr string) error {
	if !gronx.New().IsValid(expr) {
		return fmt.Errorf("invalid sweep schedule %q", expr)
	}
	for {
		next, err := gronx.NextTickAfter(expr, time.Now(), false)
		if err != nil {
			return fmt.Errorf("next sweep for %q: %w", expr, err)
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		if n := m.Sweep(); n > 0 {
			slog.Info("sessions: swept expired states", "dropped", n, "remaining", m.Count())
		}
	}
}
