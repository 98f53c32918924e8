package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/olihawkins/skyfilter/internal/bsky"
)

// fetchTimeout bounds each image download, redirects included.
const fetchTimeout = 60 * time.Second

// Image tracks one image through the pipeline: where it came from, where
// it landed on disk, whether the download completed, and its score.
type Image struct {
	URL      string
	Filepath string
	Alt      string
	Height   *int64
	Width    *int64
	Score    float64
	Complete bool
}

// Fetcher downloads a post's images to the dated artifact directory.
type Fetcher struct {
	ImagesDir string
	Client    *http.Client
	// Injected clock for deterministic paths under test.
	Now func() time.Time
}

// NewFetcher returns a fetcher writing under imagesDir.
func NewFetcher(imagesDir string) *Fetcher {
	return &Fetcher{
		ImagesDir: imagesDir,
		Client:    &http.Client{Timeout: fetchTimeout},
		Now:       time.Now,
	}
}

// Fetch downloads all of the post's images in parallel and reports each
// outcome. It does not roll back partial failures; the caller owns the
// all-or-nothing decision over the returned set.
func (f *Fetcher) Fetch(ctx context.Context, postImages []bsky.PostImage) []Image {
	var images = make([]Image, len(postImages))
	var group errgroup.Group
	for i, postImage := range postImages {
		group.Go(func() error {
			images[i] = f.fetchOne(ctx, postImage)
			return nil
		})
	}
	_ = group.Wait()
	return images
}

func (f *Fetcher) fetchOne(ctx context.Context, postImage bsky.PostImage) Image {
	var img = Image{
		URL:    postImage.Fullsize,
		Alt:    postImage.Alt,
		Height: postImage.Height,
		Width:  postImage.Width,
	}
	img.Filepath = DownloadPath(f.ImagesDir, postImage.Fullsize, f.Now())

	if err := f.download(ctx, img.URL, img.Filepath); err != nil {
		log.WithFields(log.Fields{"err": err, "url": img.URL}).Error("image fetch failed")
		return img
	}
	img.Complete = true
	return img
}

func (f *Fetcher) download(ctx context.Context, url, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating image directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching image: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading image body: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("writing image file: %w", err)
	}
	return nil
}

// DownloadPath derives the on-disk location for an image URL of the form
// …/{name}@{suffix}: a file {name}.{suffix} under the ISO-dated directory.
// Deterministic for a given URL and date.
func DownloadPath(imagesDir, imageURL string, now time.Time) string {
	var suffix = imageURL
	if i := strings.LastIndex(imageURL, "@"); i >= 0 {
		suffix = imageURL[i+1:]
	}
	var name = imageURL[strings.LastIndex(imageURL, "/")+1:]
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	return filepath.Join(imagesDir, now.Format("2006-01-02"), name+"."+suffix)
}

// removeFiles deletes every downloaded file in images and returns the
// emptied image list. Used when a post's image set must be rolled back
// as a unit.
func removeFiles(images []Image) []Image {
	for _, img := range images {
		if !img.Complete {
			continue
		}
		if err := os.Remove(img.Filepath); err != nil && !os.IsNotExist(err) {
			log.WithFields(log.Fields{"err": err, "path": img.Filepath}).
				Error("removing image file failed")
		}
	}
	return nil
}
