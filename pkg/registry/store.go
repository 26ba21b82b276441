package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/opencontainers/go-digest"
	"golang.org/x/exp/slices"

	"zerospeech.io/zrc/pkg/errors"
	"zerospeech.io/zrc/pkg/types"
)

const RepositoryIndexFileName = "index.json"

func ItemPath(kind types.ResourceKind, name string) string {
	return path.Join("items", string(kind), name+".tar.gz")
}

func SubmissionPath(id string) string {
	return path.Join("submissions", id+".zip")
}

// FSStore keeps the repository index, item archives and submission blobs on
// an FSProvider.
type FSStore struct {
	FS             FSProvider
	EnableRedirect bool
}

func NewFSStore(ctx context.Context, options *Options) (*FSStore, error) {
	var fs FSProvider
	if fs == nil && options.S3.URL != "" {
		s3fs, err := NewS3FSProvider(ctx, options.S3)
		if err != nil {
			return nil, err
		}
		fs = s3fs
	}
	if fs == nil && options.Local.Basepath != "" {
		if options.EnableRedirect {
			return nil, errors.NewInternalError(fmt.Errorf("local storage does not support redirect"))
		}
		localfs, err := NewLocalFSProvider(options.Local)
		if err != nil {
			return nil, err
		}
		fs = localfs
	}
	if fs == nil {
		return nil, errors.NewInternalError(fmt.Errorf("no storage provider is configured"))
	}
	return &FSStore{FS: fs, EnableRedirect: options.EnableRedirect}, nil
}

func IsStorageNotFound(err error) bool {
	return os.IsNotExist(err) || IsS3StorageNotFound(err)
}

// GetIndex returns the repository index. A repository with no index yet
// serves an empty one.
func (m *FSStore) GetIndex(ctx context.Context) (*types.RepositoryIndex, error) {
	body, err := m.FS.Get(ctx, RepositoryIndexFileName)
	if err != nil {
		if IsStorageNotFound(err) {
			return &types.RepositoryIndex{
				SchemaVersion: types.IndexSchemaVersion,
				MediaType:     types.MediaTypeRepositoryIndexJson,
			}, nil
		}
		return nil, errors.NewInternalError(err)
	}
	defer body.Close()

	index := &types.RepositoryIndex{}
	if err := json.NewDecoder(body).Decode(index); err != nil {
		return nil, errors.NewInternalError(err)
	}
	return index, nil
}

func (m *FSStore) PutIndex(ctx context.Context, index *types.RepositoryIndex) error {
	index.SchemaVersion = types.IndexSchemaVersion
	index.MediaType = types.MediaTypeRepositoryIndexJson
	index.LastModified = time.Now().UTC()
	for _, kind := range types.AllResourceKinds() {
		items := index.Items(kind)
		slices.SortFunc(items, func(a, b types.ResourceItem) bool { return a.Name < b.Name })
	}
	content, err := json.Marshal(index)
	if err != nil {
		return errors.NewInternalError(err)
	}
	return m.FS.Put(ctx, RepositoryIndexFileName, BlobContent{
		Content:       io.NopCloser(bytes.NewReader(content)),
		ContentLength: int64(len(content)),
		ContentType:   types.MediaTypeRepositoryIndexJson,
	})
}

func (m *FSStore) ExistsItem(ctx context.Context, kind types.ResourceKind, name string) (bool, error) {
	if ok, err := m.FS.Exists(ctx, ItemPath(kind, name)); err != nil {
		return false, errors.NewInternalError(err)
	} else {
		return ok, nil
	}
}

func (m *FSStore) GetItem(ctx context.Context, kind types.ResourceKind, name string) (BlobContent, error) {
	content, err := m.FS.Get(ctx, ItemPath(kind, name))
	if err != nil {
		if IsStorageNotFound(err) {
			return BlobContent{}, errors.NewItemUnknownError(name)
		}
		return BlobContent{}, errors.NewInternalError(err)
	}
	return content, nil
}

// GetItemLocation returns a presigned URL for the item archive when the
// backend supports redirects.
func (m *FSStore) GetItemLocation(ctx context.Context, kind types.ResourceKind, name string) (string, error) {
	if !m.EnableRedirect {
		return "", errors.NewUnsupportedError("redirect is disabled")
	}
	return m.FS.GetLocation(ctx, ItemPath(kind, name))
}

// PutItem stores an item archive, verifies it against the declared digest
// and refreshes the index entry.
func (m *FSStore) PutItem(ctx context.Context, item types.ResourceItem, body io.Reader) error {
	digester := digest.Canonical.Digester()
	content := BlobContent{
		Content:       io.NopCloser(io.TeeReader(body, digester.Hash())),
		ContentLength: item.Size,
		ContentType:   item.MediaType,
	}
	if err := m.FS.Put(ctx, ItemPath(item.Kind, item.Name), content); err != nil {
		return errors.NewInternalError(err)
	}
	if got := digester.Digest(); got != item.Digest {
		// the stored blob does not match what the client declared, drop it
		_ = m.FS.Remove(ctx, ItemPath(item.Kind, item.Name), false)
		return errors.NewDigestInvalidError(fmt.Sprintf("expected %s, got %s", item.Digest, got))
	}
	return m.refreshIndexEntry(ctx, item)
}

func (m *FSStore) refreshIndexEntry(ctx context.Context, item types.ResourceItem) error {
	index, err := m.GetIndex(ctx)
	if err != nil {
		return err
	}
	item.Modified = time.Now().UTC()

	items := index.Items(item.Kind)
	replaced := false
	for i := range items {
		if items[i].Name == item.Name {
			items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, item)
	}
	switch item.Kind {
	case types.KindDataset:
		index.Datasets = items
	case types.KindCheckpoint:
		index.Checkpoints = items
	case types.KindSample:
		index.Samples = items
	default:
		return errors.NewParameterInvalidError(fmt.Sprintf("unknown item kind %q", item.Kind))
	}
	return m.PutIndex(ctx, index)
}

func (m *FSStore) DeleteItem(ctx context.Context, kind types.ResourceKind, name string) error {
	if err := m.FS.Remove(ctx, ItemPath(kind, name), false); err != nil {
		if IsStorageNotFound(err) {
			return errors.NewItemUnknownError(name)
		}
		return errors.NewInternalError(err)
	}
	index, err := m.GetIndex(ctx)
	if err != nil {
		return err
	}
	items := index.Items(kind)
	kept := items[:0]
	for _, it := range items {
		if it.Name != name {
			kept = append(kept, it)
		}
	}
	switch kind {
	case types.KindDataset:
		index.Datasets = kept
	case types.KindCheckpoint:
		index.Checkpoints = kept
	case types.KindSample:
		index.Samples = kept
	}
	return m.PutIndex(ctx, index)
}

// PutSubmissionBlob stores a submission archive under its digest id and
// verifies the two match.
func (m *FSStore) PutSubmissionBlob(ctx context.Context, id string, content BlobContent) (digest.Digest, error) {
	digester := digest.Canonical.Digester()
	content.Content = io.NopCloser(io.TeeReader(content.Content, digester.Hash()))
	if err := m.FS.Put(ctx, SubmissionPath(id), content); err != nil {
		return "", errors.NewInternalError(err)
	}
	got := digester.Digest()
	if got.Encoded() != id {
		_ = m.FS.Remove(ctx, SubmissionPath(id), false)
		return "", errors.NewDigestInvalidError(fmt.Sprintf("submission id %s does not match content digest %s", id, got))
	}
	return got, nil
}

func (m *FSStore) GetSubmissionBlob(ctx context.Context, id string) (BlobContent, error) {
	content, err := m.FS.Get(ctx, SubmissionPath(id))
	if err != nil {
		if IsStorageNotFound(err) {
			return BlobContent{}, errors.NewSubmissionUnknownError(id)
		}
		return BlobContent{}, errors.NewInternalError(err)
	}
	return content, nil
}
