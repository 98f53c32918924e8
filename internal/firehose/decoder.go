// Package firehose implements the stream service's core: decoding repo
// commit frames into typed operations, admitting posts by predicate, and
// the bounded hand-off queue feeding the post writer.
package firehose

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/repo"
	"github.com/ipfs/go-cid"
	log "github.com/sirupsen/logrus"
	cbg "github.com/whyrusleeping/cbor-gen"
)

// Collection NSIDs dispatched by the decoder. Unknown collections are ignored.
const (
	CollectionPost   = "app.bsky.feed.post"
	CollectionRepost = "app.bsky.feed.repost"
	CollectionLike   = "app.bsky.feed.like"
	CollectionFollow = "app.bsky.graph.follow"
)

// CreatedOp is one decoded record creation within a commit.
type CreatedOp struct {
	URI    string
	CID    cid.Cid
	Author string
	Record cbg.CBORMarshaler
}

// DeletedOp is one record deletion within a commit. Consumers currently
// ignore deletions; the decoder still buckets them by collection.
type DeletedOp struct {
	URI string
}

// CollectionOps groups a commit's operations for one collection.
type CollectionOps struct {
	Created []CreatedOp
	Deleted []DeletedOp
}

// CommitOps is the typed operation map produced from one commit frame.
type CommitOps struct {
	Posts   CollectionOps
	Reposts CollectionOps
	Likes   CollectionOps
	Follows CollectionOps
}

func (o *CommitOps) byCollection(collection string) *CollectionOps {
	switch collection {
	case CollectionPost:
		return &o.Posts
	case CollectionRepost:
		return &o.Reposts
	case CollectionLike:
		return &o.Likes
	case CollectionFollow:
		return &o.Follows
	default:
		return nil
	}
}

// recordSource yields decoded records by repo path. Satisfied by *repo.Repo.
type recordSource interface {
	GetRecord(ctx context.Context, path string) (cid.Cid, cbg.CBORMarshaler, error)
}

// DecodeCommit parses the commit's block archive and returns its operations
// grouped by collection. An unreadable archive aborts the whole frame;
// individual records that are missing, malformed, or inconsistent with
// their URI collection are dropped.
func DecodeCommit(ctx context.Context, evt *comatproto.SyncSubscribeRepos_Commit) (*CommitOps, error) {
	var rr, err = repo.ReadRepoFromCar(ctx, bytes.NewReader(evt.Blocks))
	if err != nil {
		return nil, fmt.Errorf("reading commit block archive: %w", err)
	}
	return decodeOps(ctx, rr, evt)
}

func decodeOps(ctx context.Context, src recordSource, evt *comatproto.SyncSubscribeRepos_Commit) (*CommitOps, error) {
	var ops = new(CommitOps)

	for _, op := range evt.Ops {
		var collection, _, found = strings.Cut(op.Path, "/")
		if !found {
			continue
		}
		var uri = fmt.Sprintf("at://%s/%s", evt.Repo, op.Path)

		switch op.Action {
		case "update":
			// Updates are discarded.

		case "create":
			if op.Cid == nil {
				continue
			}
			var rcid, rec, err = src.GetRecord(ctx, op.Path)
			if err != nil {
				log.WithFields(log.Fields{"err": err, "uri": uri}).
					Debug("dropping operation with unreadable record")
				continue
			}
			if !rcid.Equals(cid.Cid(*op.Cid)) {
				continue
			}
			if recordCollection(rec) != collection {
				// URI collection and record type disagree: no fallback bucket.
				continue
			}
			if bucket := ops.byCollection(collection); bucket != nil {
				bucket.Created = append(bucket.Created, CreatedOp{
					URI:    uri,
					CID:    rcid,
					Author: evt.Repo,
					Record: rec,
				})
			}

		case "delete":
			if bucket := ops.byCollection(collection); bucket != nil {
				bucket.Deleted = append(bucket.Deleted, DeletedOp{URI: uri})
			}
		}
	}
	return ops, nil
}

// recordCollection maps a decoded record to the collection its type belongs
// to, or "" when the type is not one the decoder dispatches.
func recordCollection(rec cbg.CBORMarshaler) string {
	switch rec.(type) {
	case *appbsky.FeedPost:
		return CollectionPost
	case *appbsky.FeedRepost:
		return CollectionRepost
	case *appbsky.FeedLike:
		return CollectionLike
	case *appbsky.GraphFollow:
		return CollectionFollow
	default:
		return ""
	}
}
