package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/opencontainers/go-digest"
	"k8s.io/apimachinery/pkg/util/wait"
	"zerospeech.io/zrc/pkg/client/progress"
	"zerospeech.io/zrc/pkg/types"
)

// UploadSubmission digests and uploads a submission zip, returning the
// server's receipt.
func (c *Client) UploadSubmission(ctx context.Context, archive string, benchmark, submitter string, quiet bool) (*types.SubmissionReceipt, error) {
	fi, err := os.Stat(archive)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	dgst, err := digest.FromReader(f)
	_ = f.Close()
	if err != nil {
		return nil, err
	}

	out := io.Writer(os.Stdout)
	if quiet {
		out = io.Discard
	}
	mb := progress.NewMultiBar(out, 40, 1)
	go mb.Run(ctx)

	var receipt *types.SubmissionReceipt
	mb.Go(archive, "pending", func(b *progress.Bar) error {
		body := UploadBody{
			ContentLength: fi.Size(),
			ContentBody: func() (io.ReadCloser, error) {
				rc, err := os.Open(archive)
				if err != nil {
					return nil, err
				}
				return b.WrapReader(rc, dgst.Encoded()[:8], fi.Size(), "uploading", "done", "failed"), nil
			},
		}
		r, err := c.PutSubmission(ctx, dgst, benchmark, submitter, body)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err := mb.Wait(); err != nil {
		return nil, err
	}
	return receipt, nil
}

const receiptPollInterval = 5 * time.Second

// WaitReceipt polls the submission status until it reaches a terminal state
// or the context expires.
func (c *Client) WaitReceipt(ctx context.Context, id string, onUpdate func(types.SubmissionReceipt)) (*types.SubmissionReceipt, error) {
	var last *types.SubmissionReceipt
	err := wait.PollImmediateUntilWithContext(ctx, receiptPollInterval, func(ctx context.Context) (bool, error) {
		receipt, err := c.GetSubmission(ctx, id)
		if err != nil {
			return false, err
		}
		if last == nil || receipt.Status != last.Status {
			if onUpdate != nil {
				onUpdate(*receipt)
			}
		}
		last = receipt
		return receipt.Status.Terminal(), nil
	})
	if err != nil {
		return last, fmt.Errorf("wait for submission %s: %w", id, err)
	}
	return last, nil
}
