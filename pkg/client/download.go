package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
	"zerospeech.io/zrc/pkg/client/progress"
	"zerospeech.io/zrc/pkg/errors"
	"zerospeech.io/zrc/pkg/types"
)

// PullItems downloads and extracts the given items under basedir, one
// subdirectory per item, rendering a progress bar per download.
func (c *Client) PullItems(ctx context.Context, items []types.ResourceItem, basedir string, quiet bool) error {
	out := io.Writer(os.Stdout)
	if quiet {
		out = io.Discard
	}
	mb := progress.NewMultiBar(out, 40, DefaultPullConcurrency)
	go mb.Run(ctx)

	for _, item := range items {
		item := item
		mb.Go(item.Name, "pending", func(b *progress.Bar) error {
			return c.PullItem(ctx, item, basedir+string(os.PathSeparator)+item.Name, b)
		})
	}
	return mb.Wait()
}

const DefaultPullConcurrency = 3

// PullItem streams one item archive into intodir, verifying the announced
// digest over the full stream. A mismatch removes the partial extraction.
func (c *Client) PullItem(ctx context.Context, item types.ResourceItem, intodir string, bar *progress.Bar) error {
	bar.SetStatus(item.Name, "connecting")

	content, contentlen, err := c.openItem(ctx, item)
	if err != nil {
		return err
	}
	defer content.Close()

	name := item.Name
	if item.Digest != "" {
		name = item.Digest.Encoded()[:8]
	}
	src := bar.WrapReader(content, name, contentlen, "downloading", "done", "failed")

	digester := digest.Canonical.Digester()
	tee := io.TeeReader(src, digester.Hash())

	if err := UnTGZ(ctx, intodir, tee); err != nil {
		_ = os.RemoveAll(intodir)
		return fmt.Errorf("extract %s: %w", item.Name, err)
	}
	// drain trailing padding so the digest covers the whole archive
	if _, err := io.Copy(io.Discard, tee); err != nil {
		return err
	}

	if item.Digest != "" && digester.Digest() != item.Digest {
		_ = os.RemoveAll(intodir)
		return errors.NewDigestInvalidError(digester.Digest().String())
	}
	return nil
}

// openItem prefers the item's own origin URL and falls back to the repository
// server's item route.
func (c *Client) openItem(ctx context.Context, item types.ResourceItem) (io.ReadCloser, int64, error) {
	if item.Origin != "" && strings.Contains(item.Origin, "://") {
		addr := strings.TrimSuffix(item.Origin, "/") + "/" + string(item.Kind) + "/" + item.Name + ".tar.gz"
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
		if err != nil {
			return nil, -1, err
		}
		resp, err := c.httpclient().Do(req)
		if err != nil {
			return nil, -1, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, -1, errors.NewItemUnknownError(item.Name)
		}
		return resp.Body, resp.ContentLength, nil
	}
	return c.GetItem(ctx, item.Kind, item.Name)
}
