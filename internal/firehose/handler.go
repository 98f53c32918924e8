package firehose

import (
	"context"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	log "github.com/sirupsen/logrus"

	"github.com/olihawkins/skyfilter/internal/metrics"
)

// DefaultQueueCapacity bounds the ingest queue when no capacity is configured.
const DefaultQueueCapacity = 1024

// Envelope is an admitted post awaiting durable insertion.
type Envelope struct {
	URI    string
	Record *appbsky.FeedPost
}

// Handler consumes commit frames from the firehose, admits matching posts,
// and enqueues them onto a bounded channel. The channel send blocks when the
// queue is full, which backpressures frame delivery rather than dropping.
type Handler struct {
	queue chan Envelope

	// Swapped by tests to decode without a real block archive.
	decode func(context.Context, *comatproto.SyncSubscribeRepos_Commit) (*CommitOps, error)
}

// NewHandler returns a handler with a queue of the given capacity.
func NewHandler(capacity int) *Handler {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Handler{
		queue:  make(chan Envelope, capacity),
		decode: DecodeCommit,
	}
}

// Queue returns the consumer side of the ingest queue.
func (h *Handler) Queue() <-chan Envelope { return h.queue }

// Close closes the queue, letting the consumer drain and exit. Call only
// after frame delivery has stopped.
func (h *Handler) Close() { close(h.queue) }

// HandleCommit processes one commit frame. Frames without blocks are
// ignored; an undecodable archive drops the frame and keeps the stream
// alive. Returns an error only when ctx is cancelled mid-enqueue.
func (h *Handler) HandleCommit(ctx context.Context, evt *comatproto.SyncSubscribeRepos_Commit) error {
	if len(evt.Blocks) == 0 {
		return nil
	}
	metrics.FramesReceived.Inc()

	var ops, err = h.decode(ctx, evt)
	if err != nil {
		log.WithFields(log.Fields{"err": err, "repo": evt.Repo, "seq": evt.Seq}).
			Error("dropping undecodable commit frame")
		metrics.FramesAborted.Inc()
		return nil
	}

	for _, created := range ops.Posts.Created {
		var rec, ok = created.Record.(*appbsky.FeedPost)
		if !ok || !AdmitPost(rec) {
			continue
		}
		select {
		case h.queue <- Envelope{URI: created.URI, Record: rec}:
			metrics.PostsAdmitted.Inc()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Deletions are decoded but not consumed.
	return nil
}
