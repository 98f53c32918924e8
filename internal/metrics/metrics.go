// Package metrics exports prometheus counters for the stream and process
// services, and an optional scrape endpoint.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var FramesReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "skyfilter_stream_frames_received_total",
	Help: "counter of firehose commit frames received with a non-empty block archive",
})

var FramesAborted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "skyfilter_stream_frames_aborted_total",
	Help: "counter of commit frames dropped because the block archive failed to decode",
})

var PostsAdmitted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "skyfilter_stream_posts_admitted_total",
	Help: "counter of posts which passed the admission filter and were enqueued",
})

var PostInsertErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "skyfilter_stream_post_insert_errors_total",
	Help: "counter of post writer insert failures",
}, []string{"kind"})

var BatchesStarted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "skyfilter_process_batches_total",
	Help: "counter of non-empty batches pulled by the scheduler loop",
})

var PostsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "skyfilter_process_posts_total",
	Help: "counter of processed posts by terminal status",
}, []string{"status"})

var CommitErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "skyfilter_process_commit_errors_total",
	Help: "counter of per-post result transactions which rolled back",
})

// Serve exposes /metrics on the given port. A port of zero disables the
// endpoint. The listener runs until process exit.
func Serve(port int) {
	if port <= 0 {
		return
	}
	var mux = http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		var addr = fmt.Sprintf(":%d", port)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithFields(log.Fields{"err": err, "addr": addr}).Error("metrics listener failed")
		}
	}()
}
