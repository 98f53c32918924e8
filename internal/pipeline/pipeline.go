// Package pipeline implements the process service's core: the per-post
// state machine driving thread fetch, image download, classification and
// the drop filter, plus the scheduler loop that batches it against the
// store.
package pipeline

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/olihawkins/skyfilter/internal/bsky"
	"github.com/olihawkins/skyfilter/internal/predict"
	"github.com/olihawkins/skyfilter/internal/store"
)

// Drop-filter constants: a post whose best score is below dropThreshold is
// discarded with probability dropProbability, rebalancing the stored corpus
// toward positives without keeping every negative.
const (
	dropThreshold   = 0.3
	dropProbability = 0.5
)

// Result is the terminal outcome of processing one post.
type Result struct {
	Post           store.Post
	Status         store.Status
	Classification int
	Images         []Image
}

// Pipeline processes single posts to a terminal status.
type Pipeline struct {
	Threads    bsky.ThreadFetcher
	Fetcher    *Fetcher
	Classifier *Classifier
	Rand       predict.Rand
}

// Process runs the post state machine. Every path yields a terminal
// status; for any terminal status other than complete, none of the post's
// image files remain on disk. Panics are absorbed at this boundary so one
// post cannot take down the batch.
func (p *Pipeline) Process(ctx context.Context, post store.Post) (result Result) {
	result = Result{Post: post, Status: store.StatusUncatalogued}
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"panic": r, "uri": post.URI}).Error("post pipeline panicked")
			if !result.Status.Terminal() {
				result.Status = store.StatusFetchPostError
			}
		}
	}()

	var postImages = p.Threads.FetchPostImages(ctx, post.URI)
	if len(postImages) == 0 {
		result.Status = store.StatusFetchPostError
		return result
	}

	var images = p.Fetcher.Fetch(ctx, postImages)
	if anyIncomplete(images) {
		removeFiles(images)
		result.Status = store.StatusFetchImageError
		return result
	}

	images, failed := p.Classifier.Classify(images)
	if failed {
		removeFiles(images)
		result.Status = store.StatusClassifyImageError
		return result
	}

	if p.dropRandomNegatives(images) {
		removeFiles(images)
		result.Status = store.StatusDropped
		return result
	}

	result.Status = store.StatusComplete
	result.Classification = classifyPost(images)
	result.Images = images
	return result
}

func anyIncomplete(images []Image) bool {
	for _, img := range images {
		if !img.Complete {
			return true
		}
	}
	return false
}

// dropRandomNegatives decides whether to discard a post whose images all
// scored below the drop threshold, using one fresh uniform draw.
func (p *Pipeline) dropRandomNegatives(images []Image) bool {
	var highest float64
	for _, img := range images {
		if img.Score > highest {
			highest = img.Score
		}
	}
	return highest < dropThreshold && p.Rand.Float64() < dropProbability
}
