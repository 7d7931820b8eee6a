package engine

import (
	"context"
	"log"
	"time"
)

// SweepSkips drops skip records whose undo window has already elapsed.
// Correctness never depends on this — UndoSkip checks the deadline on
// read — it just keeps the map from accumulating dead entries. Returns
// the number of records removed.
func (e *Engine) SweepSkips() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	removed := 0
	for userID, rec := range e.skips {
		if now.Sub(rec.At) > UndoWindow {
			delete(e.skips, userID)
			removed++
		}
	}
	return removed
}

// StartSweeper runs SweepSkips on the given interval until ctx is done.
func (e *Engine) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[engine] sweeper stopped")
				return
			case <-ticker.C:
				if n := e.SweepSkips(); n > 0 {
					log.Printf("[engine] swept %d expired skip records", n)
				}
			}
		}
	}()
}
