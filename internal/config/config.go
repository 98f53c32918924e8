// Package config defines the go-flags option groups shared by the stream
// and process executables. Every option binds an SF_-prefixed environment
// variable through the enclosing group's env-namespace, so services can be
// configured entirely from the environment.
package config

import (
	"fmt"
	"time"
)

// DB configures the PostgreSQL store and the image artifact root.
// Bound under env-namespace SF_DB.
type DB struct {
	Host      string `long:"host" env:"HOST" required:"true" description:"Database host"`
	Port      string `long:"port" env:"PORT" default:"5432" description:"Database port"`
	Name      string `long:"name" env:"NAME" required:"true" description:"Database name"`
	User      string `long:"user" env:"USER" required:"true" description:"Database user"`
	Pass      string `long:"pass" env:"PASS" required:"true" description:"Database password"`
	ImagesDir string `long:"images-dir" env:"IMAGES_DIR" default:"images" description:"Root directory for downloaded image artifacts"`
}

// DSN renders the keyword/value connection string for the pgx driver.
func (c DB) DSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s",
		c.Host, c.Port, c.Name, c.User, c.Pass)
}

// Bsky configures access to the Bluesky network.
// Bound under env-namespace SF_BSKY.
type Bsky struct {
	User  string `long:"user" env:"USER" description:"Bluesky account identifier"`
	Pass  string `long:"pass" env:"PASS" description:"Bluesky app password"`
	Host  string `long:"host" env:"HOST" default:"https://bsky.social" description:"PDS host for authenticated calls"`
	Relay string `long:"relay" env:"RELAY" default:"wss://bsky.network" description:"Relay host for the firehose subscription"`
}

// Batch configures the process scheduler cadence.
// Bound under env-namespace SF_BATCH.
type Batch struct {
	Interval time.Duration `long:"interval" env:"INTERVAL" default:"500ms" description:"Minimum interval between batch starts"`
	Postpone time.Duration `long:"postpone" env:"POSTPONE" default:"500ms" description:"Sleep when the batch cadence is not yet due"`
	Wait     time.Duration `long:"wait" env:"WAIT" default:"4s" description:"Sleep after the selector returns an empty batch"`
	Size     int           `long:"size" env:"SIZE" default:"10" description:"Maximum posts per batch"`
}
