package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/opencontainers/go-digest"
	"zerospeech.io/zrc/pkg/errors"
	"zerospeech.io/zrc/pkg/types"
)

// Client talks to a zrcd repository server.
type Client struct {
	Client        *http.Client
	Base          string
	Authorization string
}

func NewClient(base string, auth string) *Client {
	return &Client{
		Client:        http.DefaultClient,
		Base:          base,
		Authorization: auth,
	}
}

func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.GetRepositoryIndex(ctx); err != nil {
		return err
	}
	return nil
}

func (c *Client) GetRepositoryIndex(ctx context.Context) (*types.RepositoryIndex, error) {
	index := &types.RepositoryIndex{}
	if _, err := c.request(ctx, "GET", "/", nil, nil, index); err != nil {
		return nil, err
	}
	return index, nil
}

func (c *Client) GetItem(ctx context.Context, kind types.ResourceKind, name string) (io.ReadCloser, int64, error) {
	path := "/items/" + string(kind) + "/" + url.PathEscape(name)
	resp, err := c.request(ctx, "GET", path, nil, nil, nil)
	if err != nil {
		return nil, -1, err
	}
	return resp.Body, resp.ContentLength, nil
}

func (c *Client) HeadItem(ctx context.Context, kind types.ResourceKind, name string) (bool, error) {
	path := "/items/" + string(kind) + "/" + url.PathEscape(name)
	resp, err := c.request(ctx, "HEAD", path, nil, nil, nil)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// UploadBody carries a re-openable request body so redirects and retries can
// reread it.
type UploadBody struct {
	ContentLength int64
	ContentBody   func() (io.ReadCloser, error)
}

func (c *Client) PutSubmission(ctx context.Context, dgst digest.Digest, benchmark, submitter string, body UploadBody) (*types.SubmissionReceipt, error) {
	header := map[string]string{
		"Content-Type":    types.MediaTypeSubmissionZip,
		"X-Zrc-Benchmark": benchmark,
		"X-Zrc-Submitter": submitter,
	}
	receipt := &types.SubmissionReceipt{}
	path := "/submissions/" + dgst.Encoded()
	if _, err := c.request(ctx, "PUT", path, header, body, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Client) GetSubmission(ctx context.Context, id string) (*types.SubmissionReceipt, error) {
	receipt := &types.SubmissionReceipt{}
	path := "/submissions/" + url.PathEscape(id)
	if _, err := c.request(ctx, "GET", path, nil, nil, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Client) GetLeaderboard(ctx context.Context, benchmark string) (*types.Leaderboard, error) {
	board := &types.Leaderboard{}
	path := "/leaderboards/" + url.PathEscape(benchmark)
	if _, err := c.request(ctx, "GET", path, nil, nil, board); err != nil {
		return nil, err
	}
	return board, nil
}

func (c *Client) PutLeaderboardEntry(ctx context.Context, entry types.LeaderboardEntry) error {
	header := map[string]string{
		"Content-Type": types.MediaTypeLeaderboardJson,
	}
	path := "/leaderboards/" + url.PathEscape(entry.Benchmark)
	if _, err := c.request(ctx, "PUT", path, header, entry, nil); err != nil {
		return err
	}
	return nil
}

// Login verifies the token against the server's oauth endpoint.
func (c *Client) Login(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+"/oauth", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.httpclient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return errors.NewUnauthorizedError(string(msg))
	}
	return nil
}

func (c *Client) httpclient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (c *Client) request(ctx context.Context, method, path string, header map[string]string, body any, into any) (*http.Response, error) {
	addr := c.Base + path

	var reqbody io.Reader
	var contentlength int64
	switch val := body.(type) {
	case UploadBody:
		rc, err := val.ContentBody()
		if err != nil {
			return nil, err
		}
		reqbody, contentlength = rc, val.ContentLength
	case io.Reader:
		reqbody = val
	case nil:
		reqbody = nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		reqbody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, addr, reqbody)
	if err != nil {
		return nil, err
	}
	if contentlength > 0 {
		req.ContentLength = contentlength
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if c.Authorization != "" {
		req.Header.Set("Authorization", c.Authorization)
	}
	resp, err := c.httpclient().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 && req.Method != "HEAD" {
		defer resp.Body.Close()
		var apierr errors.ErrorInfo
		if resp.Header.Get("Content-Type") == "application/json" {
			if err := json.NewDecoder(resp.Body).Decode(&apierr); err != nil {
				return nil, err
			}
		} else {
			bodystr, _ := io.ReadAll(resp.Body)
			apierr.Message = string(bodystr)
		}
		if apierr.Message == "" {
			apierr.Message = fmt.Sprintf("unexpected status %s", resp.Status)
		}
		return nil, apierr
	}
	if into != nil {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
