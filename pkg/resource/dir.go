// Package resource manages the locally installed copies of repository items:
// datasets, checkpoints and sample submissions. All three kinds share the
// same layout, one directory per item plus an install marker.
package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/slices"
	"zerospeech.io/zrc/pkg/client"
	"zerospeech.io/zrc/pkg/errors"
	"zerospeech.io/zrc/pkg/settings"
	"zerospeech.io/zrc/pkg/types"
)

// MarkerFileName records the descriptor an item was installed from.
const MarkerFileName = ".zrc-item.json"

type Item struct {
	types.ResourceItem
	InstallDir string
	Installed  bool
}

type Dir struct {
	Kind     types.ResourceKind
	Base     string
	Settings *settings.Settings

	index *types.RepositoryIndex
}

func Load(kind types.ResourceKind) (*Dir, error) {
	st := settings.Get()
	var base string
	switch kind {
	case types.KindDataset:
		base = st.DatasetsDir()
	case types.KindCheckpoint:
		base = st.CheckpointsDir()
	case types.KindSample:
		base = st.SamplesDir()
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &Dir{Kind: kind, Base: base, Settings: st}, nil
}

func (d *Dir) client() *client.Client {
	return client.NewClient(d.Settings.RepoOrigin, "")
}

// Index returns the repository index, loading the local cache first and
// falling back to the network.
func (d *Dir) Index(ctx context.Context) (*types.RepositoryIndex, error) {
	if d.index != nil {
		return d.index, nil
	}
	content, err := os.ReadFile(d.Settings.IndexCache())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		return d.UpdateIndex(ctx)
	}
	index := &types.RepositoryIndex{}
	if err := json.Unmarshal(content, index); err != nil {
		// stale or corrupt cache, refetch
		return d.UpdateIndex(ctx)
	}
	d.index = index
	return index, nil
}

// UpdateIndex refetches the repository index and rewrites the local cache.
func (d *Dir) UpdateIndex(ctx context.Context) (*types.RepositoryIndex, error) {
	index, err := d.client().GetRepositoryIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch repository index from %s: %w", d.Settings.RepoOrigin, err)
	}
	if index.SchemaVersion == 0 {
		return nil, fmt.Errorf("repository index at %s is not valid", d.Settings.RepoOrigin)
	}
	content, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(d.Settings.IndexCache()), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(d.Settings.IndexCache(), content, 0o644); err != nil {
		return nil, err
	}
	d.index = index
	return index, nil
}

// Available lists every item the index announces for this kind, annotated
// with its local install state.
func (d *Dir) Available(ctx context.Context) ([]Item, error) {
	index, err := d.Index(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(index.Items(d.Kind)))
	for _, ri := range index.Items(d.Kind) {
		items = append(items, d.localState(ri))
	}
	slices.SortFunc(items, func(a, b Item) bool { return a.Name < b.Name })
	return items, nil
}

// Installed lists only the locally installed items.
func (d *Dir) Installed(ctx context.Context) ([]Item, error) {
	all, err := d.Available(ctx)
	if err != nil {
		return nil, err
	}
	installed := make([]Item, 0, len(all))
	for _, item := range all {
		if item.Installed {
			installed = append(installed, item)
		}
	}
	return installed, nil
}

func (d *Dir) Get(ctx context.Context, name string) (Item, error) {
	index, err := d.Index(ctx)
	if err != nil {
		return Item{}, err
	}
	ri, ok := index.Find(d.Kind, name)
	if !ok {
		return Item{}, errors.NewItemUnknownError(name)
	}
	return d.localState(ri), nil
}

func (d *Dir) localState(ri types.ResourceItem) Item {
	item := Item{ResourceItem: ri, InstallDir: filepath.Join(d.Base, ri.Name)}
	marker, err := os.ReadFile(filepath.Join(item.InstallDir, MarkerFileName))
	if err != nil {
		return item
	}
	var installed types.ResourceItem
	if err := json.Unmarshal(marker, &installed); err != nil {
		return item
	}
	// a digest change upstream means the local copy is outdated
	item.Installed = ri.Digest == "" || installed.Digest == ri.Digest
	return item
}

// Pull installs the named item. Pulling an up to date item is a no-op.
func (d *Dir) Pull(ctx context.Context, name string, quiet bool) error {
	item, err := d.Get(ctx, name)
	if err != nil {
		return err
	}
	if item.Installed {
		if !quiet {
			fmt.Printf("%s %s is already installed\n", d.Kind, name)
		}
		return nil
	}
	// items without their own origin URL are served by the repository
	// server, check there before starting the download
	if !strings.Contains(item.Origin, "://") {
		ok, err := d.client().HeadItem(ctx, d.Kind, name)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewItemUnknownError(name)
		}
	}
	if err := d.client().PullItems(ctx, []types.ResourceItem{item.ResourceItem}, d.Base, quiet); err != nil {
		return err
	}
	return d.writeMarker(item)
}

func (d *Dir) writeMarker(item Item) error {
	content, err := json.MarshalIndent(item.ResourceItem, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(item.InstallDir, MarkerFileName), content, 0o644)
}

// Uninstall removes the local copy of the named item.
func (d *Dir) Uninstall(ctx context.Context, name string) error {
	item, err := d.Get(ctx, name)
	if err != nil {
		return err
	}
	if !item.Installed {
		return fmt.Errorf("%s %s is not installed", d.Kind, name)
	}
	return os.RemoveAll(item.InstallDir)
}
