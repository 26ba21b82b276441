package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/opencontainers/go-digest"

	"zerospeech.io/zrc/pkg/client"
	"zerospeech.io/zrc/pkg/errors"
	"zerospeech.io/zrc/pkg/leaderboard"
	"zerospeech.io/zrc/pkg/submission"
	"zerospeech.io/zrc/pkg/types"
)

// Registry serves the repository index, item archives, submissions and
// leaderboards.
type Registry struct {
	Store *FSStore
	KV    *KVStore
	Auth  *OIDCAuthenticator

	// serializes leaderboard read-modify-write cycles
	leaderboardMu sync.Mutex
}

func NewRegistry(ctx context.Context, options *Options) (*Registry, error) {
	store, err := NewFSStore(ctx, options)
	if err != nil {
		return nil, err
	}
	kv, err := NewKVStore(options.DB)
	if err != nil {
		return nil, err
	}
	registry := &Registry{Store: store, KV: kv}
	if options.OIDC.Issuer != "" {
		auth, err := NewOIDCAuthenticator(ctx, options.OIDC.Issuer)
		if err != nil {
			return nil, err
		}
		registry.Auth = auth
	}
	return registry, nil
}

func (s *Registry) GetRepositoryIndex(w http.ResponseWriter, r *http.Request) {
	index, err := s.Store.GetIndex(r.Context())
	if err != nil {
		ResponseError(w, err)
		return
	}
	ResponseOK(w, index)
}

func GetItemVars(r *http.Request) (types.ResourceKind, string) {
	vars := mux.Vars(r)
	return types.ResourceKind(vars["kind"]), vars["name"]
}

func (s *Registry) HeadItem(w http.ResponseWriter, r *http.Request) {
	kind, name := GetItemVars(r)
	exist, err := s.Store.ExistsItem(r.Context(), kind, name)
	if err != nil {
		ResponseError(w, err)
		return
	}
	if exist {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Registry) GetItem(w http.ResponseWriter, r *http.Request) {
	kind, name := GetItemVars(r)
	location, err := s.Store.GetItemLocation(r.Context(), kind, name)
	if err == nil {
		w.Header().Add("Location", location)
		w.WriteHeader(http.StatusFound)
		return
	}
	if !errors.IsErrCode(err, errors.ErrCodeUnsupported) {
		ResponseError(w, err)
		return
	}
	content, err := s.Store.GetItem(r.Context(), kind, name)
	if err != nil {
		ResponseError(w, err)
		return
	}
	defer content.Close()
	w.Header().Set("Content-Length", strconv.FormatInt(content.ContentLength, 10))
	w.Header().Set("Content-Type", content.ContentType)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, content)
}

// PutItem stores an item archive. The digest and size come from headers so
// the blob can be streamed through verification.
func (s *Registry) PutItem(w http.ResponseWriter, r *http.Request) {
	kind, name := GetItemVars(r)
	item, err := parseItemDescriptor(r, kind, name)
	if err != nil {
		ResponseError(w, err)
		return
	}
	if err := s.Store.PutItem(r.Context(), *item, r.Body); err != nil {
		ResponseError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Registry) DeleteItem(w http.ResponseWriter, r *http.Request) {
	kind, name := GetItemVars(r)
	if err := s.Store.DeleteItem(r.Context(), kind, name); err != nil {
		ResponseError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func parseItemDescriptor(r *http.Request, kind types.ResourceKind, name string) (*types.ResourceItem, error) {
	dgst, err := digestFromHeader(r)
	if err != nil {
		return nil, err
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return nil, errors.NewContentTypeInvalidError("empty")
	}
	if r.ContentLength <= 0 {
		return nil, errors.NewContentLengthInvalidError("missing or zero")
	}
	return &types.ResourceItem{
		Descriptor: types.Descriptor{
			Name:      name,
			MediaType: contentType,
			Digest:    dgst,
			Size:      r.ContentLength,
		},
		Kind:   kind,
		Origin: "",
	}, nil
}

func (s *Registry) PutSubmission(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if contentType := r.Header.Get("Content-Type"); contentType != types.MediaTypeSubmissionZip {
		ResponseError(w, errors.NewContentTypeInvalidError(contentType))
		return
	}
	benchmarkName := r.Header.Get("X-Zrc-Benchmark")
	if benchmarkName == "" {
		ResponseError(w, errors.NewSubmissionInvalidError(fmt.Errorf("missing X-Zrc-Benchmark header")))
		return
	}
	if _, err := s.KV.GetReceipt(id); err == nil {
		ResponseError(w, errors.NewSubmissionInvalidError(fmt.Errorf("submission %s already exists", id)))
		return
	}

	content := BlobContent{
		Content:       r.Body,
		ContentLength: r.ContentLength,
		ContentType:   types.MediaTypeSubmissionZip,
	}
	dgst, err := s.Store.PutSubmissionBlob(r.Context(), id, content)
	if err != nil {
		ResponseError(w, err)
		return
	}

	receipt := &types.SubmissionReceipt{
		ID:        id,
		Benchmark: benchmarkName,
		Submitter: r.Header.Get("X-Zrc-Submitter"),
		Digest:    dgst,
		Size:      r.ContentLength,
		Status:    types.StatusReceived,
		Created:   time.Now().UTC(),
	}
	if err := s.KV.PutReceipt(receipt); err != nil {
		ResponseError(w, err)
		return
	}
	go s.processSubmission(logr.NewContext(context.Background(), logr.FromContextOrDiscard(r.Context())), id)

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(receipt)
}

func (s *Registry) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.KV.ListReceipts()
	if err != nil {
		ResponseError(w, err)
		return
	}
	ResponseOK(w, receipts)
}

func (s *Registry) GetSubmission(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.KV.GetReceipt(mux.Vars(r)["id"])
	if err != nil {
		ResponseError(w, err)
		return
	}
	ResponseOK(w, receipt)
}

// processSubmission advances a fresh receipt through validation: the stored
// archive must be a readable zip whose meta file names the benchmark the
// uploader declared.
func (s *Registry) processSubmission(ctx context.Context, id string) {
	log := logr.FromContextOrDiscard(ctx).WithValues("submission", id)

	receipt, err := s.KV.GetReceipt(id)
	if err != nil {
		log.Error(err, "receipt vanished before processing")
		return
	}
	receipt.Status = types.StatusValidating
	if err := s.KV.PutReceipt(receipt); err != nil {
		log.Error(err, "update receipt")
		return
	}

	reject := func(reason error) {
		receipt.Status = types.StatusRejected
		receipt.Message = reason.Error()
		if err := s.KV.PutReceipt(receipt); err != nil {
			log.Error(err, "update receipt")
		}
		log.Info("submission rejected", "reason", reason.Error())
	}

	meta, err := s.submissionMeta(ctx, id)
	if err != nil {
		reject(err)
		return
	}
	if meta.Benchmark != receipt.Benchmark {
		reject(fmt.Errorf("archive meta names benchmark %q, upload declared %q", meta.Benchmark, receipt.Benchmark))
		return
	}

	receipt.Status = types.StatusDone
	receipt.Message = "submission accepted, scoring is scheduled"
	if err := s.KV.PutReceipt(receipt); err != nil {
		log.Error(err, "update receipt")
		return
	}
	log.Info("submission accepted", "benchmark", receipt.Benchmark)
}

// submissionMeta extracts the meta file from a stored submission archive.
func (s *Registry) submissionMeta(ctx context.Context, id string) (*submission.MetaFile, error) {
	content, err := s.Store.GetSubmissionBlob(ctx, id)
	if err != nil {
		return nil, err
	}
	defer content.Close()

	tmpdir, err := os.MkdirTemp("", "zrcd-submission-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpdir)

	// the zip reader needs a seekable source, spool the blob first
	archive, err := os.CreateTemp(tmpdir, "archive-*.zip")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(archive, content); err != nil {
		archive.Close()
		return nil, fmt.Errorf("spool submission archive: %w", err)
	}
	if _, err := archive.Seek(0, io.SeekStart); err != nil {
		archive.Close()
		return nil, err
	}
	unzipErr := client.Unzip(ctx, tmpdir, archive)
	archive.Close()
	if unzipErr != nil {
		return nil, fmt.Errorf("submission is not a readable zip archive: %w", unzipErr)
	}
	meta, err := submission.LoadMeta(tmpdir)
	if err != nil {
		return nil, fmt.Errorf("submission archive has no valid meta file: %w", err)
	}
	return meta, nil
}

func (s *Registry) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.KV.GetLeaderboard(mux.Vars(r)["benchmark"])
	if err != nil {
		ResponseError(w, err)
		return
	}
	ResponseOK(w, board)
}

// PutLeaderboardEntry merges one entry into the benchmark leaderboard,
// replacing any previous entry of the same submitter and system.
func (s *Registry) PutLeaderboardEntry(w http.ResponseWriter, r *http.Request) {
	benchmarkName := mux.Vars(r)["benchmark"]
	entry := types.LeaderboardEntry{}
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		ResponseError(w, errors.NewEntryInvalidError(err))
		return
	}
	if entry.Benchmark != "" && entry.Benchmark != benchmarkName {
		ResponseError(w, errors.NewEntryInvalidError(fmt.Errorf("entry benchmark %q does not match %q", entry.Benchmark, benchmarkName)))
		return
	}
	entry.Benchmark = benchmarkName
	if entry.Submitter == "" {
		ResponseError(w, errors.NewEntryInvalidError(fmt.Errorf("entry has no submitter")))
		return
	}
	if entry.Submitted.IsZero() {
		entry.Submitted = time.Now().UTC()
	}

	s.leaderboardMu.Lock()
	defer s.leaderboardMu.Unlock()
	board, err := s.KV.GetLeaderboard(benchmarkName)
	if err != nil {
		if !errors.IsErrCode(err, errors.ErrCodeBenchmarkUnknown) {
			ResponseError(w, err)
			return
		}
		board = &types.Leaderboard{Benchmark: benchmarkName}
	}
	leaderboard.Merge(board, entry)
	if err := s.KV.PutLeaderboard(board); err != nil {
		ResponseError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func digestFromHeader(r *http.Request) (digest.Digest, error) {
	raw := r.Header.Get("X-Zrc-Digest")
	dgst, err := digest.Parse(raw)
	if err != nil {
		return "", errors.NewDigestInvalidError(raw)
	}
	return dgst, nil
}
