package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/koharu-go/koharu/pkg/kerr"
)

// DefaultSegmentSize is the byte-range chunk size used when a download's
// configured segment size is unset.
const DefaultSegmentSize = 16 << 20 // 16 MiB

// mirrorHead is one candidate mirror's HEAD-probe outcome.
type mirrorHead struct {
	URL           string
	SizeBytes     int64
	AcceptsRanges bool
}

// raceMirrorHeads issues a HEAD request to every url concurrently and
// returns the first one that responds 200 with a known Content-Length.
// Slower or failing mirrors are abandoned once a winner is found.
func raceMirrorHeads(ctx context.Context, client *http.Client, urls []string) (mirrorHead, error) {
	if len(urls) == 0 {
		return mirrorHead{}, kerr.New(kerr.BadInput, "assets: no mirror urls configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan mirrorHead, len(urls))
	var wg sync.WaitGroup
	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
			if err != nil {
				return
			}
			resp, err := client.Do(req)
			if err != nil {
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return
			}
			select {
			case results <- mirrorHead{
				URL:           u,
				SizeBytes:     resp.ContentLength,
				AcceptsRanges: resp.Header.Get("Accept-Ranges") == "bytes",
			}:
			case <-ctx.Done():
			}
		}(u)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for winner := range results {
		if winner.SizeBytes > 0 {
			cancel()
			return winner, nil
		}
	}
	return mirrorHead{}, kerr.New(kerr.ResourceUnavailable, "assets: no mirror answered a HEAD probe")
}

// downloadSegmented fetches url in byte-range segments of segmentSize,
// writing each directly into its offset in dest. Segments download
// concurrently (bounded by errgroup's default unlimited goroutines guarded
// by a semaphore) and report progress via onProgress after each segment
// completes.
func downloadSegmented(ctx context.Context, client *http.Client, url, dest string, size int64, segmentSize int64, onProgress func(fetched, total int64)) error {
	if segmentSize <= 0 {
		segmentSize = DefaultSegmentSize
	}

	f, err := os.Create(dest)
	if err != nil {
		return kerr.Wrap(kerr.IOFailure, "assets: create destination file", err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		return kerr.Wrap(kerr.IOFailure, "assets: preallocate destination file", err)
	}

	var fetched int64
	const maxConcurrent = 4
	sem := make(chan struct{}, maxConcurrent)
	g, gctx := errgroup.WithContext(ctx)

	for start := int64(0); start < size; start += segmentSize {
		start := start
		end := start + segmentSize - 1
		if end >= size {
			end = size - 1
		}
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			req, err := http.NewRequestWithContext(gctx, http.MethodGet, url, nil)
			if err != nil {
				return kerr.Wrap(kerr.IOFailure, "assets: build range request", err)
			}
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
			resp, err := client.Do(req)
			if err != nil {
				return kerr.Wrap(kerr.IOFailure, "assets: range request", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
				return kerr.New(kerr.ResourceUnavailable, fmt.Sprintf("assets: range request returned status %d", resp.StatusCode))
			}

			buf := make([]byte, end-start+1)
			if _, err := io.ReadFull(resp.Body, buf); err != nil {
				return kerr.Wrap(kerr.IOFailure, "assets: read range body", err)
			}
			if _, err := f.WriteAt(buf, start); err != nil {
				return kerr.Wrap(kerr.IOFailure, "assets: write segment", err)
			}

			n := atomic.AddInt64(&fetched, int64(len(buf)))
			if onProgress != nil {
				onProgress(n, size)
			}
			return nil
		})
	}

	return g.Wait()
}
