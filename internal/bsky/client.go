// Package bsky wraps the authenticated Bluesky client used by the process
// service: session creation and post-thread image lookup.
package bsky

import (
	"context"
	"fmt"
	"net/http"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/xrpc"
	log "github.com/sirupsen/logrus"
)

// PostImage describes one image attached to a post thread.
type PostImage struct {
	Fullsize string
	Alt      string
	Height   *int64
	Width    *int64
}

// ThreadFetcher yields the images attached to a post's thread.
type ThreadFetcher interface {
	FetchPostImages(ctx context.Context, uri string) []PostImage
}

// Client is an authenticated XRPC client.
type Client struct {
	xrpc *xrpc.Client
}

// Login creates a session against the PDS host and returns the client.
func Login(ctx context.Context, host, user, pass string) (*Client, error) {
	var xc = &xrpc.Client{
		Host:   host,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
	var sess, err = comatproto.ServerCreateSession(ctx, xc, &comatproto.ServerCreateSession_Input{
		Identifier: user,
		Password:   pass,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session for %s: %w", user, err)
	}
	xc.Auth = &xrpc.AuthInfo{
		AccessJwt:  sess.AccessJwt,
		RefreshJwt: sess.RefreshJwt,
		Handle:     sess.Handle,
		Did:        sess.Did,
	}
	log.WithField("handle", sess.Handle).Info("bluesky session created")
	return &Client{xrpc: xc}, nil
}

// FetchPostImages fetches the post's thread at depth zero and merges any
// directly-embedded images with images nested under media. Fetch failures
// and threads without an accessible post yield an empty list, which the
// pipeline records as a fetch-post error.
func (c *Client) FetchPostImages(ctx context.Context, uri string) []PostImage {
	var thread, err = appbsky.FeedGetPostThread(ctx, c.xrpc, 0, 0, uri)
	if err != nil {
		log.WithFields(log.Fields{"err": err, "uri": uri}).Error("fetching post thread failed")
		return nil
	}
	if thread.Thread == nil || thread.Thread.FeedDefs_ThreadViewPost == nil {
		return nil
	}
	var post = thread.Thread.FeedDefs_ThreadViewPost.Post
	if post == nil || post.Embed == nil {
		return nil
	}
	return flattenEmbed(post.Embed)
}

func flattenEmbed(embed *appbsky.FeedDefs_PostView_Embed) []PostImage {
	var views []*appbsky.EmbedImages_ViewImage
	if embed.EmbedImages_View != nil {
		views = append(views, embed.EmbedImages_View.Images...)
	}
	if embed.EmbedRecordWithMedia_View != nil &&
		embed.EmbedRecordWithMedia_View.Media != nil &&
		embed.EmbedRecordWithMedia_View.Media.EmbedImages_View != nil {
		views = append(views, embed.EmbedRecordWithMedia_View.Media.EmbedImages_View.Images...)
	}

	var images = make([]PostImage, 0, len(views))
	for _, view := range views {
		var img = PostImage{Fullsize: view.Fullsize, Alt: view.Alt}
		if view.AspectRatio != nil {
			img.Height = &view.AspectRatio.Height
			img.Width = &view.AspectRatio.Width
		}
		images = append(images, img)
	}
	return images
}
