package cleanup

import (
	"time"

	"github.com/rs/zerolog/log"
)

// RefreshPurger deletes dead refresh rows.
type RefreshPurger interface {
	DeleteExpired(olderThanDays int) (int64, error)
}

// Worker periodically purges refresh rows that are expired or revoked and
// past the retention window. Expired rows are already rejected at renewal
// time; this just keeps the table from growing without bound.
type Worker struct {
	Refresh       RefreshPurger
	Interval      time.Duration
	RetentionDays int
}

func NewWorker(refresh RefreshPurger) *Worker {
	return &Worker{
		Refresh:       refresh,
		Interval:      1 * time.Hour,
		RetentionDays: 7,
	}
}

// Start initiates the background ticker
func (w *Worker) Start() {
	go func() {
		w.runCleanup()
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for range ticker.C {
			w.runCleanup()
		}
	}()
	log.Info().Msg("[CLEANUP] background worker started")
}

func (w *Worker) runCleanup() {
	deleted, err := w.Refresh.DeleteExpired(w.RetentionDays)
	if err != nil {
		log.Error().Err(err).Msg("[CLEANUP] failed to purge refresh tokens")
		return
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("[CLEANUP] removed dead refresh tokens")
	}
}
