package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerospeech.io/zrc/pkg/submission"
	"zerospeech.io/zrc/pkg/types"
)

func testRegistry(t *testing.T) (*Registry, *httptest.Server) {
	t.Helper()
	options := DefaultOptions()
	options.Local.Basepath = filepath.Join(t.TempDir(), "repository")
	options.DB.Path = filepath.Join(t.TempDir(), "zrcd.db")

	registry, err := NewRegistry(context.Background(), options)
	require.NoError(t, err)
	t.Cleanup(func() { registry.KV.Close() })

	server := httptest.NewServer(registry.route())
	t.Cleanup(server.Close)
	return registry, server
}

func TestGetRepositoryIndexEmpty(t *testing.T) {
	_, server := testRegistry(t)

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	index := types.RepositoryIndex{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&index))
	assert.Equal(t, types.IndexSchemaVersion, index.SchemaVersion)
	assert.Empty(t, index.Datasets)
}

func TestItemLifecycle(t *testing.T) {
	_, server := testRegistry(t)
	httpc := server.Client()

	content := []byte("archive bytes")
	dgst := digest.Canonical.FromBytes(content)

	put := func(declared digest.Digest) *http.Response {
		req, err := http.NewRequest(http.MethodPut, server.URL+"/items/datasets/sLM21-dataset", bytes.NewReader(content))
		require.NoError(t, err)
		req.Header.Set("Content-Type", types.MediaTypeItemArchiveTarGz)
		req.Header.Set("X-Zrc-Digest", declared.String())
		resp, err := httpc.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := put(dgst)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// the index now announces the item
	resp, err := httpc.Get(server.URL + "/")
	require.NoError(t, err)
	index := types.RepositoryIndex{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&index))
	resp.Body.Close()
	item, ok := index.Find(types.KindDataset, "sLM21-dataset")
	require.True(t, ok)
	assert.Equal(t, dgst, item.Digest)
	assert.Equal(t, int64(len(content)), item.Size)
	assert.Equal(t, types.MediaTypeRepositoryIndexJson, index.MediaType)
	assert.Equal(t, types.IndexSchemaVersion, index.SchemaVersion)

	// head and get
	req, _ := http.NewRequest(http.MethodHead, server.URL+"/items/datasets/sLM21-dataset", nil)
	resp, err = httpc.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = httpc.Get(server.URL + "/items/datasets/sLM21-dataset")
	require.NoError(t, err)
	got, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, content, got)

	// a digest mismatch is rejected and the blob dropped
	resp = put(digest.Canonical.FromString("something else"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errinfo := struct {
		Code string `json:"code"`
	}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errinfo))
	resp.Body.Close()
	assert.Equal(t, "DIGEST_INVALID", errinfo.Code)

	// delete removes blob and index entry
	req, _ = http.NewRequest(http.MethodDelete, server.URL+"/items/datasets/sLM21-dataset", nil)
	resp, err = httpc.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodHead, server.URL+"/items/datasets/sLM21-dataset", nil)
	resp, err = httpc.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetItemUnknown(t *testing.T) {
	_, server := testRegistry(t)

	resp, err := http.Get(server.URL + "/items/checkpoints/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmissionLifecycle(t *testing.T) {
	_, server := testRegistry(t)
	httpc := server.Client()

	// a real submission archive with a meta file
	dir := t.TempDir()
	meta := submission.MetaTemplate("sLM21")
	meta.Author = "jane"
	require.NoError(t, meta.Save(dir))
	archive := filepath.Join(t.TempDir(), "submission.zip")
	dgst, err := submission.Zip(context.Background(), dir, archive)
	require.NoError(t, err)
	content, err := os.ReadFile(archive)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut, server.URL+"/submissions/"+dgst.Encoded(), bytes.NewReader(content))
	require.NoError(t, err)
	req.Header.Set("Content-Type", types.MediaTypeSubmissionZip)
	req.Header.Set("X-Zrc-Benchmark", "sLM21")
	req.Header.Set("X-Zrc-Submitter", "jane")
	resp, err := httpc.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	receipt := types.SubmissionReceipt{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&receipt))
	resp.Body.Close()
	assert.Equal(t, types.StatusReceived, receipt.Status)

	// processing runs in the background, wait for the terminal state
	require.Eventually(t, func() bool {
		resp, err := httpc.Get(server.URL + "/submissions/" + dgst.Encoded())
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		got := types.SubmissionReceipt{}
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			return false
		}
		receipt = got
		return got.Status.Terminal()
	}, 10*time.Second, 50*time.Millisecond)
	assert.Equal(t, types.StatusDone, receipt.Status)
	assert.Equal(t, "jane", receipt.Submitter)

	// duplicate uploads are refused
	req, err = http.NewRequest(http.MethodPut, server.URL+"/submissions/"+dgst.Encoded(), bytes.NewReader(content))
	require.NoError(t, err)
	req.Header.Set("Content-Type", types.MediaTypeSubmissionZip)
	req.Header.Set("X-Zrc-Benchmark", "sLM21")
	resp, err = httpc.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionBenchmarkMismatchRejected(t *testing.T) {
	_, server := testRegistry(t)
	httpc := server.Client()

	dir := t.TempDir()
	require.NoError(t, submission.MetaTemplate("sLM21").Save(dir))
	archive := filepath.Join(t.TempDir(), "submission.zip")
	dgst, err := submission.Zip(context.Background(), dir, archive)
	require.NoError(t, err)
	content, err := os.ReadFile(archive)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut, server.URL+"/submissions/"+dgst.Encoded(), bytes.NewReader(content))
	require.NoError(t, err)
	req.Header.Set("Content-Type", types.MediaTypeSubmissionZip)
	req.Header.Set("X-Zrc-Benchmark", "abx-LS")
	resp, err := httpc.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var receipt types.SubmissionReceipt
	require.Eventually(t, func() bool {
		resp, err := httpc.Get(server.URL + "/submissions/" + dgst.Encoded())
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
			return false
		}
		return receipt.Status.Terminal()
	}, 10*time.Second, 50*time.Millisecond)
	assert.Equal(t, types.StatusRejected, receipt.Status)
	assert.Contains(t, receipt.Message, "sLM21")
}

func TestLeaderboardMergeAndRanking(t *testing.T) {
	_, server := testRegistry(t)
	httpc := server.Client()

	put := func(entry types.LeaderboardEntry) *http.Response {
		content, err := json.Marshal(entry)
		require.NoError(t, err)
		req, err := http.NewRequest(http.MethodPut, server.URL+"/leaderboards/sLM21", bytes.NewReader(content))
		require.NoError(t, err)
		resp, err := httpc.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := put(types.LeaderboardEntry{Submitter: "jane", System: "cpc", Overall: 0.7})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = put(types.LeaderboardEntry{Submitter: "bob", System: "hubert", Overall: 0.9})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := httpc.Get(server.URL + "/leaderboards/sLM21")
	require.NoError(t, err)
	board := types.Leaderboard{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&board))
	resp.Body.Close()
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "bob", board.Entries[0].Submitter)

	// entries without a submitter are invalid
	resp = put(types.LeaderboardEntry{Overall: 1.0})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = httpc.Get(server.URL + "/leaderboards/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConcurrentLeaderboardPuts(t *testing.T) {
	_, server := testRegistry(t)
	httpc := server.Client()

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry := types.LeaderboardEntry{
				Submitter: fmt.Sprintf("user-%d", i),
				System:    "cpc",
				Overall:   float64(i) / writers,
			}
			content, err := json.Marshal(entry)
			if !assert.NoError(t, err) {
				return
			}
			req, err := http.NewRequest(http.MethodPut, server.URL+"/leaderboards/sLM21", bytes.NewReader(content))
			if !assert.NoError(t, err) {
				return
			}
			resp, err := httpc.Do(req)
			if !assert.NoError(t, err) {
				return
			}
			resp.Body.Close()
			assert.Equal(t, http.StatusCreated, resp.StatusCode)
		}()
	}
	wg.Wait()

	resp, err := httpc.Get(server.URL + "/leaderboards/sLM21")
	require.NoError(t, err)
	board := types.Leaderboard{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&board))
	resp.Body.Close()
	assert.Len(t, board.Entries, writers, "concurrent puts must not drop entries")
}

func TestListSubmissions(t *testing.T) {
	registry, server := testRegistry(t)

	for _, id := range []string{"0a11", "0b22"} {
		require.NoError(t, registry.KV.PutReceipt(&types.SubmissionReceipt{
			ID:        id,
			Benchmark: "sLM21",
			Status:    types.StatusReceived,
			Created:   time.Now().UTC(),
		}))
	}

	resp, err := http.Get(server.URL + "/submissions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	receipts := []types.SubmissionReceipt{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&receipts))
	require.Len(t, receipts, 2)
	assert.Equal(t, "0b22", receipts[0].ID, "newest id first")
}

func TestLocalFSProviderRoundtrip(t *testing.T) {
	provider, err := NewLocalFSProvider(&LocalFSOptions{Basepath: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	content := []byte("blob content")
	err = provider.Put(ctx, "items/datasets/x.tar.gz", BlobContent{
		Content:       io.NopCloser(bytes.NewReader(content)),
		ContentLength: int64(len(content)),
		ContentType:   types.MediaTypeItemArchiveTarGz,
	})
	require.NoError(t, err)

	ok, err := provider.Exists(ctx, "items/datasets/x.tar.gz")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := provider.Get(ctx, "items/datasets/x.tar.gz")
	require.NoError(t, err)
	data, err := io.ReadAll(got)
	got.Close()
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, types.MediaTypeItemArchiveTarGz, got.ContentType)
	assert.Equal(t, int64(len(content)), got.ContentLength)

	// listing skips the .meta sidecars
	metas, err := provider.List(ctx, "items/datasets", false)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "x.tar.gz", metas[0].Name)

	_, err = provider.GetLocation(ctx, "items/datasets/x.tar.gz")
	assert.Error(t, err)

	require.NoError(t, provider.Remove(ctx, "items/datasets/x.tar.gz", false))
	ok, err = provider.Exists(ctx, "items/datasets/x.tar.gz")
	require.NoError(t, err)
	assert.False(t, ok)
}
