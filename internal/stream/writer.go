package stream

import (
	"context"

	"github.com/bluesky-social/indigo/atproto/syntax"
	log "github.com/sirupsen/logrus"

	"github.com/olihawkins/skyfilter/internal/firehose"
	"github.com/olihawkins/skyfilter/internal/metrics"
	"github.com/olihawkins/skyfilter/internal/store"
	"github.com/olihawkins/skyfilter/internal/text"
)

// RunWriter drains the ingest queue into the posts table, one committed row
// per envelope, until the queue is closed. Insert failures are logged and
// skipped; a duplicate admission hits the post_uri unique constraint and is
// expected during reconnects.
func RunWriter(ctx context.Context, st *store.Store, queue <-chan firehose.Envelope) {
	for env := range queue {
		var createdAt, err = syntax.ParseDatetimeLenient(env.Record.CreatedAt)
		if err != nil {
			log.WithFields(log.Fields{"err": err, "uri": env.URI}).
				Error("skipping post with unparseable created_at")
			metrics.PostInsertErrors.WithLabelValues("bad_timestamp").Inc()
			continue
		}

		err = st.InsertPost(ctx, env.URI, text.Squish(env.Record.Text), createdAt.Time())
		if err == nil {
			continue
		}
		if store.IsUniqueViolation(err) {
			log.WithField("uri", env.URI).Warn("duplicate post admission rejected")
			metrics.PostInsertErrors.WithLabelValues("duplicate").Inc()
		} else {
			log.WithFields(log.Fields{"err": err, "uri": env.URI}).Error("post insert failed")
			metrics.PostInsertErrors.WithLabelValues("insert").Inc()
		}
	}
}
