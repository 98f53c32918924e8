package pipeline

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/olihawkins/skyfilter/internal/metrics"
	"github.com/olihawkins/skyfilter/internal/sigmon"
	"github.com/olihawkins/skyfilter/internal/store"
)

// batchStore is the slice of the store the scheduler drives.
type batchStore interface {
	SelectUncatalogued(ctx context.Context, limit int) ([]store.Post, error)
	CommitResult(ctx context.Context, postID int64, status store.Status, images []store.Image) error
}

// processor runs one post to a terminal result.
type processor interface {
	Process(ctx context.Context, post store.Post) Result
}

// Scheduler drives batches of post processing at a fixed cadence until
// shutdown. Pipelines within a batch run in parallel; results are
// committed per post in completion order, so one post's failure cannot
// abort its peers.
type Scheduler struct {
	Store    batchStore
	Pipeline processor

	// BatchInterval is the minimum time between batch starts.
	BatchInterval time.Duration
	// BatchPostpone is slept when the cadence is not yet due.
	BatchPostpone time.Duration
	// BatchWait is slept after an empty selection, protecting the store
	// and the upstream API from hot-looping during quiet periods.
	BatchWait time.Duration
	// BatchSize caps the posts pulled per batch.
	BatchSize int
}

// Run loops until the monitor signals shutdown. The batch in flight when
// the signal arrives completes and commits before the loop exits.
func (s *Scheduler) Run(ctx context.Context, monitor *sigmon.Monitor) {
	var nextUpdate = time.Now().Add(-time.Second)

	for !monitor.Shutdown() {
		var now = time.Now()
		if now.Before(nextUpdate) {
			sleep(ctx, s.BatchPostpone)
			continue
		}
		nextUpdate = now.Add(s.BatchInterval)

		var batch, err = s.Store.SelectUncatalogued(ctx, s.BatchSize)
		if err != nil {
			log.WithField("err", err).Error("selecting batch failed")
			sleep(ctx, s.BatchWait)
			continue
		}
		if len(batch) == 0 {
			sleep(ctx, s.BatchWait)
			continue
		}
		metrics.BatchesStarted.Inc()

		var results = make(chan Result, len(batch))
		var wg sync.WaitGroup
		for _, post := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- s.Pipeline.Process(ctx, post)
			}()
		}
		go func() {
			wg.Wait()
			close(results)
		}()

		for result := range results {
			s.commit(ctx, result)
		}
	}
	log.Info("scheduler loop exited")
}

func (s *Scheduler) commit(ctx context.Context, result Result) {
	var images = make([]store.Image, 0, len(result.Images))
	for _, img := range result.Images {
		images = append(images, store.Image{
			URL:      img.URL,
			Filepath: img.Filepath,
			Alt:      img.Alt,
			Height:   img.Height,
			Width:    img.Width,
			Score:    img.Score,
		})
	}

	if err := s.Store.CommitResult(ctx, result.Post.ID, result.Status, images); err != nil {
		log.WithFields(log.Fields{"err": err, "uri": result.Post.URI}).
			Error("committing post result failed")
		metrics.CommitErrors.Inc()
		return
	}
	metrics.PostsProcessed.WithLabelValues(result.Status.String()).Inc()

	if result.Status == store.StatusComplete {
		log.WithFields(log.Fields{
			"uri":            result.Post.URI,
			"images":         len(result.Images),
			"classification": result.Classification,
		}).Info("post catalogued")
	}
}

// sleep waits for the duration or context cancellation, whichever first.
func sleep(ctx context.Context, d time.Duration) {
	var timer = time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
