package firehose

import (
	"context"
	"errors"
	"testing"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/stretchr/testify/require"
)

// stubDecode replaces the block-archive decode with a fixed result.
func stubDecode(ops *CommitOps, err error) func(context.Context, *comatproto.SyncSubscribeRepos_Commit) (*CommitOps, error) {
	return func(context.Context, *comatproto.SyncSubscribeRepos_Commit) (*CommitOps, error) {
		return ops, err
	}
}

func commitFrame() *comatproto.SyncSubscribeRepos_Commit {
	return &comatproto.SyncSubscribeRepos_Commit{Repo: "did:plc:abc", Blocks: []byte{0x01}}
}

func admittablePost(uri string) CreatedOp {
	return CreatedOp{
		URI: uri,
		Record: &appbsky.FeedPost{
			Langs:     []string{"en"},
			Text:      "hi",
			CreatedAt: "2024-06-01T12:00:00Z",
			Embed:     directImages(),
		},
	}
}

func TestHandlerEnqueuesAdmittedPosts(t *testing.T) {
	var h = NewHandler(4)
	h.decode = stubDecode(&CommitOps{Posts: CollectionOps{Created: []CreatedOp{
		admittablePost("at://did:plc:abc/app.bsky.feed.post/1"),
		{URI: "at://did:plc:abc/app.bsky.feed.post/2",
			Record: &appbsky.FeedPost{Langs: []string{"ja"}, Text: "hi", Embed: directImages()}},
	}}}, nil)

	require.NoError(t, h.HandleCommit(context.Background(), commitFrame()))

	select {
	case env := <-h.Queue():
		require.Equal(t, "at://did:plc:abc/app.bsky.feed.post/1", env.URI)
		require.Equal(t, "hi", env.Record.Text)
	default:
		t.Fatal("expected one enqueued envelope")
	}

	// The non-English post was rejected.
	select {
	case env := <-h.Queue():
		t.Fatalf("unexpected envelope %v", env)
	default:
	}
}

func TestHandlerIgnoresEmptyBlocks(t *testing.T) {
	var h = NewHandler(1)
	h.decode = stubDecode(nil, errors.New("decode should not run"))

	var evt = &comatproto.SyncSubscribeRepos_Commit{Repo: "did:plc:abc"}
	require.NoError(t, h.HandleCommit(context.Background(), evt))
}

func TestHandlerDropsUndecodableFrame(t *testing.T) {
	var h = NewHandler(1)
	h.decode = stubDecode(nil, errors.New("corrupt archive"))

	// The error is absorbed so the stream stays alive.
	require.NoError(t, h.HandleCommit(context.Background(), commitFrame()))
}

func TestHandlerBlocksWhenQueueFull(t *testing.T) {
	var h = NewHandler(1)
	h.decode = stubDecode(&CommitOps{Posts: CollectionOps{Created: []CreatedOp{
		admittablePost("at://did:plc:abc/app.bsky.feed.post/1"),
		admittablePost("at://did:plc:abc/app.bsky.feed.post/2"),
	}}}, nil)

	var done = make(chan error, 1)
	go func() { done <- h.HandleCommit(context.Background(), commitFrame()) }()

	// The second envelope cannot be enqueued until the first is consumed.
	select {
	case err := <-done:
		t.Fatalf("handler returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	var env = <-h.Queue()
	require.Equal(t, "at://did:plc:abc/app.bsky.feed.post/1", env.URI)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("handler still blocked after queue drained")
	}
	require.Equal(t, "at://did:plc:abc/app.bsky.feed.post/2", (<-h.Queue()).URI)
}

func TestHandlerUnblocksOnCancel(t *testing.T) {
	var h = NewHandler(1)
	h.decode = stubDecode(&CommitOps{Posts: CollectionOps{Created: []CreatedOp{
		admittablePost("at://did:plc:abc/app.bsky.feed.post/1"),
		admittablePost("at://did:plc:abc/app.bsky.feed.post/2"),
	}}}, nil)

	var ctx, cancel = context.WithCancel(context.Background())
	var done = make(chan error, 1)
	go func() { done <- h.HandleCommit(ctx, commitFrame()) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("handler did not observe cancellation")
	}
}
