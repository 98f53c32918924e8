// Package stream wires the stream service: a firehose subscription over
// websocket, the commit handler with its bounded queue, and the post writer
// draining the queue into PostgreSQL.
package stream

import (
	"context"
	"fmt"
	"net/http"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/events"
	"github.com/bluesky-social/indigo/events/schedulers/sequential"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/olihawkins/skyfilter/internal/firehose"
	"github.com/olihawkins/skyfilter/internal/sigmon"
	"github.com/olihawkins/skyfilter/internal/store"
)

// Config holds the stream service's runtime parameters.
type Config struct {
	// Relay is the websocket host serving com.atproto.sync.subscribeRepos.
	Relay string
	// QueueCapacity bounds the ingest queue.
	QueueCapacity int
}

// Run subscribes to the firehose and pumps admitted posts into the store
// until the monitor signals shutdown or the stream fails. Shutdown order:
// stop frame delivery, drain the queue, then let the writer exit.
func Run(ctx context.Context, cfg Config, st *store.Store, monitor *sigmon.Monitor) error {
	var handler = firehose.NewHandler(cfg.QueueCapacity)

	var addr = cfg.Relay + "/xrpc/com.atproto.sync.subscribeRepos"
	var conn, _, err = websocket.DefaultDialer.DialContext(ctx, addr, http.Header{})
	if err != nil {
		return fmt.Errorf("dialing relay %s: %w", addr, err)
	}
	log.WithField("relay", cfg.Relay).Info("subscribed to firehose")

	var streamCtx, stopStream = context.WithCancel(ctx)
	defer stopStream()

	var callbacks = &events.RepoStreamCallbacks{
		RepoCommit: func(evt *comatproto.SyncSubscribeRepos_Commit) error {
			return handler.HandleCommit(streamCtx, evt)
		},
	}
	var sched = sequential.NewScheduler("skyfilter-stream", callbacks.EventHandler)

	// The writer outlives stream cancellation so the queue can drain.
	var writerDone = make(chan struct{})
	go func() {
		defer close(writerDone)
		RunWriter(context.Background(), st, handler.Queue())
	}()

	var streamDone = make(chan error, 1)
	go func() {
		streamDone <- events.HandleRepoStream(streamCtx, conn, sched, nil)
	}()

	var streamErr error
	select {
	case <-monitor.Done():
		log.Info("stream shutting down")
		stopStream()
		conn.Close()
		<-streamDone
	case streamErr = <-streamDone:
		if streamErr != nil {
			streamErr = fmt.Errorf("firehose stream failed: %w", streamErr)
		}
	}

	handler.Close()
	<-writerDone
	return streamErr
}
