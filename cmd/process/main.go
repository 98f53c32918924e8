// Command process pulls uncatalogued posts from the store in batches,
// fetches and scores their images, and commits each post to a terminal
// status.
package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/olihawkins/skyfilter/internal/bsky"
	"github.com/olihawkins/skyfilter/internal/config"
	"github.com/olihawkins/skyfilter/internal/metrics"
	"github.com/olihawkins/skyfilter/internal/pipeline"
	"github.com/olihawkins/skyfilter/internal/predict"
	"github.com/olihawkins/skyfilter/internal/sigmon"
	"github.com/olihawkins/skyfilter/internal/store"
)

// Config is the top-level configuration object of the process service.
var Config = new(struct {
	DB    config.DB    `group:"Database" namespace:"db" env-namespace:"SF_DB"`
	Bsky  config.Bsky  `group:"Bluesky" namespace:"bsky" env-namespace:"SF_BSKY"`
	Batch config.Batch `group:"Batching" namespace:"batch" env-namespace:"SF_BATCH"`
	Log   config.Log   `group:"Logging" namespace:"log" env-namespace:"SF_LOG"`

	MetricsPort int `long:"metrics-port" env:"SF_METRICS_PORT" default:"0" description:"Prometheus scrape port (0 disables)"`
})

func main() {
	var parser = flags.NewParser(Config, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}
	if Config.Log.File == "" {
		Config.Log.File = filepath.Join("logs", "process.log")
	}
	mustSucceed(config.InitLog(Config.Log), "initializing logging")
	log.Info("process starting")

	if Config.Bsky.User == "" || Config.Bsky.Pass == "" {
		log.Fatal("SF_BSKY_USER and SF_BSKY_PASS are required")
	}

	var ctx = context.Background()
	var monitor = sigmon.New("process")

	st, err := store.Open(ctx, Config.DB)
	mustSucceed(err, "opening database")
	defer st.Close()
	mustSucceed(st.Migrate(ctx), "migrating database schema")

	client, err := bsky.Login(ctx, Config.Bsky.Host, Config.Bsky.User, Config.Bsky.Pass)
	mustSucceed(err, "logging in to bluesky")

	metrics.Serve(Config.MetricsPort)

	var rng = predict.SystemRand()
	var scheduler = &pipeline.Scheduler{
		Store: st,
		Pipeline: &pipeline.Pipeline{
			Threads:    client,
			Fetcher:    pipeline.NewFetcher(Config.DB.ImagesDir),
			Classifier: &pipeline.Classifier{Predictor: predict.NewRandom(rng)},
			Rand:       rng,
		},
		BatchInterval: Config.Batch.Interval,
		BatchPostpone: Config.Batch.Postpone,
		BatchWait:     Config.Batch.Wait,
		BatchSize:     Config.Batch.Size,
	}
	scheduler.Run(ctx, monitor)

	log.Info("process shutdown complete")
}

func mustSucceed(err error, msg string) {
	if err != nil {
		log.WithField("err", err).Fatal(msg)
	}
}
