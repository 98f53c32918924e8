// Package store implements the PostgreSQL store shared by the stream and
// process services: the posts table written by the stream writer, the
// uncatalogued batch selector, and the transactional result committer.
//
// Each service assumes it is the sole writer for its table regions; the
// selector takes no row locks, so exactly one process instance may run.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/olihawkins/skyfilter/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps the database handle with the queries the services need.
type Store struct {
	db *sqlx.DB
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg config.DB) (*Store, error) {
	var db, err = sqlx.ConnectContext(ctx, "pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle.
func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Migrate applies any pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Post identifies a stored post awaiting processing.
type Post struct {
	ID  int64  `db:"post_id"`
	URI string `db:"post_uri"`
}

// Image is the persisted form of a scored, downloaded image.
type Image struct {
	URL      string
	Filepath string
	Alt      string
	Height   *int64
	Width    *int64
	Score    float64
}

// InsertPost records an admitted post with the initial uncatalogued status.
// The posts.post_uri unique constraint rejects duplicate admissions.
func (s *Store) InsertPost(ctx context.Context, uri, text string, createdAt time.Time) error {
	var _, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (post_uri, post_text, post_created_at)
		VALUES ($1, $2, $3)`,
		uri, text, createdAt)
	if err != nil {
		return fmt.Errorf("inserting post %s: %w", uri, err)
	}
	return nil
}

// SelectUncatalogued returns up to limit of the oldest uncatalogued posts.
// Read-only: rows are not locked or claimed.
func (s *Store) SelectUncatalogued(ctx context.Context, limit int) ([]Post, error) {
	var posts []Post
	var err = s.db.SelectContext(ctx, &posts, `
		SELECT post_id, post_uri FROM posts
		WHERE post_status_id = $1
		ORDER BY post_created_at ASC
		LIMIT $2`,
		StatusUncatalogued, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting uncatalogued posts: %w", err)
	}
	return posts, nil
}

// CommitResult finalizes one post within a single transaction: the status
// update, plus an image row per image iff the post completed. A failure
// rolls back the whole transaction and leaves the post uncatalogued.
func (s *Store) CommitResult(ctx context.Context, postID int64, status Status, images []Image) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning result transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		UPDATE posts SET post_status_id = $1 WHERE post_id = $2`,
		status, postID); err != nil {
		return fmt.Errorf("updating post %d status: %w", postID, err)
	}

	if status == StatusComplete {
		for _, img := range images {
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO images (
					image_url,
					image_filepath,
					image_alt,
					image_height,
					image_width,
					image_score,
					post_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				img.URL, img.Filepath, img.Alt, img.Height, img.Width, img.Score, postID); err != nil {
				return fmt.Errorf("inserting image row for post %d: %w", postID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing result for post %d: %w", postID, err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation, as raised by duplicate post admissions.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
