package firehose

import (
	"slices"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	log "github.com/sirupsen/logrus"
)

// AdmitPost applies the admission predicate to a decoded post record:
// English must be among the declared languages, the text must be non-empty,
// and the embed must expose images either directly or under media.
// A panic during evaluation is logged and treated as a rejection.
func AdmitPost(rec *appbsky.FeedPost) (admit bool) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("admission predicate failed")
			admit = false
		}
	}()

	if rec == nil || rec.Langs == nil {
		return false
	}
	if !slices.Contains(rec.Langs, "en") {
		return false
	}
	if rec.Text == "" {
		return false
	}
	return embedHasImages(rec.Embed)
}

func embedHasImages(embed *appbsky.FeedPost_Embed) bool {
	if embed == nil {
		return false
	}
	if embed.EmbedImages != nil {
		return true
	}
	return embed.EmbedRecordWithMedia != nil &&
		embed.EmbedRecordWithMedia.Media != nil &&
		embed.EmbedRecordWithMedia.Media.EmbedImages != nil
}
