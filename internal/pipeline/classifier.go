package pipeline

import (
	log "github.com/sirupsen/logrus"

	"github.com/olihawkins/skyfilter/internal/predict"
)

// failureSentinel is the score below which the predictor is taken to have
// failed on an image, rather than scored it as a confident negative.
const failureSentinel = 0.02

// positiveThreshold is the per-image score at or above which a post is
// classified as a positive.
const positiveThreshold = 0.5

// Classifier scores a post's downloaded images through the predictor.
type Classifier struct {
	Predictor predict.Predictor
}

// Classify annotates each image with a score in [0,1]. It reports failed
// when any image cannot be loaded or trips the failure sentinel; the caller
// then rolls the post's files back and records a classify error.
func (c *Classifier) Classify(images []Image) (scored []Image, failed bool) {
	var batch = make([]predict.Tensor, len(images))
	for i, img := range images {
		var tensor, err = predict.Load(img.Filepath)
		if err != nil {
			log.WithFields(log.Fields{"err": err, "path": img.Filepath}).
				Error("loading image for classification failed")
			return images, true
		}
		batch[i] = tensor
	}

	var scores, err = c.Predictor.Predict(batch)
	if err != nil {
		log.WithField("err", err).Error("predictor failed")
		return images, true
	}

	for i := range images {
		images[i].Score = scores[i]
		if scores[i] < failureSentinel {
			failed = true
		}
	}
	return images, failed
}

// classifyPost reduces per-image scores to the post's binary classification.
func classifyPost(images []Image) int {
	for _, img := range images {
		if img.Score >= positiveThreshold {
			return 1
		}
	}
	return 0
}
