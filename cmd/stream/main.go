// Command stream ingests the Bluesky firehose, filters English posts with
// attached images, and records admissions in the posts table.
package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/olihawkins/skyfilter/internal/config"
	"github.com/olihawkins/skyfilter/internal/metrics"
	"github.com/olihawkins/skyfilter/internal/sigmon"
	"github.com/olihawkins/skyfilter/internal/store"
	"github.com/olihawkins/skyfilter/internal/stream"
)

// Config is the top-level configuration object of the stream service.
var Config = new(struct {
	DB   config.DB   `group:"Database" namespace:"db" env-namespace:"SF_DB"`
	Bsky config.Bsky `group:"Bluesky" namespace:"bsky" env-namespace:"SF_BSKY"`
	Log  config.Log  `group:"Logging" namespace:"log" env-namespace:"SF_LOG"`

	Queue       int `long:"queue" env:"SF_QUEUE_SIZE" default:"1024" description:"Ingest queue capacity"`
	MetricsPort int `long:"metrics-port" env:"SF_METRICS_PORT" default:"0" description:"Prometheus scrape port (0 disables)"`
})

func main() {
	var parser = flags.NewParser(Config, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}
	if Config.Log.File == "" {
		Config.Log.File = filepath.Join("logs", "stream.log")
	}
	mustSucceed(config.InitLog(Config.Log), "initializing logging")
	log.Info("stream starting")

	var ctx = context.Background()
	var monitor = sigmon.New("stream")

	st, err := store.Open(ctx, Config.DB)
	mustSucceed(err, "opening database")
	defer st.Close()
	mustSucceed(st.Migrate(ctx), "migrating database schema")

	metrics.Serve(Config.MetricsPort)

	err = stream.Run(ctx, stream.Config{
		Relay:         Config.Bsky.Relay,
		QueueCapacity: Config.Queue,
	}, st, monitor)
	mustSucceed(err, "running stream")

	log.Info("stream shutdown complete")
}

func mustSucceed(err error, msg string) {
	if err != nil {
		log.WithField("err", err).Fatal(msg)
	}
}
