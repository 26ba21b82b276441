// Package benchmark defines the contract every zrc benchmark implements and
// the registry the CLI resolves names against.
package benchmark

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"zerospeech.io/zrc/pkg/submission"
)

// RunOptions narrows a run to a subset of evaluation sets or tasks. Empty
// slices mean everything.
type RunOptions struct {
	Sets  []string
	Tasks []string
	// Output overrides the score directory, default <submission>/scores.
	Output string
	Quiet  bool
}

func (o RunOptions) WantSet(name string) bool  { return contains(o.Sets, name) }
func (o RunOptions) WantTask(name string) bool { return contains(o.Tasks, name) }

func contains(filter []string, name string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == name || f == "all" {
			return true
		}
	}
	return false
}

type Benchmark interface {
	Name() string
	// Doc is printed by `zrc benchmarks info`.
	Doc() string
	Sets() []string
	Tasks() []string

	// InitSubmission creates the directory skeleton a participant fills in.
	InitSubmission(dir string) error
	// WriteParams writes a fresh params.yaml with default values.
	WriteParams(dir string) error
	// Validate inspects a submission directory without scoring it.
	Validate(ctx context.Context, dir string, opts RunOptions) ([]ValidationResponse, error)
	// Run scores the submission and writes result CSVs to the score dir.
	Run(ctx context.Context, dir string, opts RunOptions) error
}

var (
	registry     = map[string]Benchmark{}
	registryLock sync.RWMutex
)

func Register(b Benchmark) {
	registryLock.Lock()
	defer registryLock.Unlock()
	if _, exists := registry[b.Name()]; exists {
		panic(fmt.Sprintf("benchmark %s registered twice", b.Name()))
	}
	registry[b.Name()] = b
}

func Get(name string) (Benchmark, error) {
	registryLock.RLock()
	defer registryLock.RUnlock()
	b, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("benchmark %q does not exist, use one of: %v", name, Names())
	}
	return b, nil
}

func Names() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForSubmission resolves the benchmark a submission directory targets via
// its meta.yaml.
func ForSubmission(dir string) (Benchmark, error) {
	name, err := submission.BenchmarkFromSubmission(dir)
	if err != nil {
		return nil, err
	}
	return Get(name)
}
