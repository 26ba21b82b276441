// Package abxls implements the abx-LS phonetic benchmark: ABX phone
// discriminability over submitted frame features, within and across
// speakers, on the four librispeech evaluation subsets.
package abxls

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"zerospeech.io/zrc/pkg/benchmark"
	"zerospeech.io/zrc/pkg/settings"
	"zerospeech.io/zrc/pkg/submission"
)

const (
	// Name is the registry name of this benchmark.
	Name = "abx-LS"
	// DatasetName is the repository item holding the .item task files.
	DatasetName = "abxLS-dataset"
	// ResultFileName is the single result CSV a run produces.
	ResultFileName = "score_phonetic.csv"
)

func init() {
	benchmark.Register(&AbxLS{})
}

// Params are the tunable knobs of an abx-LS run.
type Params struct {
	// Mode selects the speaker condition: within, across or all.
	Mode string `json:"mode"`
	// Distance between pooled segments, cosine or euclidean.
	Distance string `json:"distance"`
	// FeatureSize is the duration in seconds one feature frame covers.
	FeatureSize float64 `json:"feature_size"`
	// MaxSizeGroup caps the tokens per phone within one cell.
	MaxSizeGroup int `json:"max_size_group"`
	// MaxXAcross caps the X speakers sampled per across cell.
	MaxXAcross int `json:"max_x_across"`
	// NJobs caps the feature loading worker pool.
	NJobs int `json:"n_jobs"`
}

func DefaultParams() Params {
	return Params{
		Mode:         "all",
		Distance:     "cosine",
		FeatureSize:  0.1,
		MaxSizeGroup: 10,
		MaxXAcross:   5,
		NJobs:        4,
	}
}

func (p Params) modes() []string {
	switch strings.ToLower(p.Mode) {
	case "within":
		return []string{"within"}
	case "across":
		return []string{"across"}
	default:
		return []string{"within", "across"}
	}
}

func (p Params) validate() []benchmark.ValidationResponse {
	var responses []benchmark.ValidationResponse
	switch strings.ToLower(p.Mode) {
	case "within", "across", "all":
	default:
		responses = append(responses, benchmark.Error("", "unknown mode %q", p.Mode))
	}
	switch p.Distance {
	case "cosine", "euclidean":
	default:
		responses = append(responses, benchmark.Error("", "unknown distance %q", p.Distance))
	}
	if p.FeatureSize <= 0 {
		responses = append(responses, benchmark.Error("", "feature_size must be positive, got %v", p.FeatureSize))
	}
	return responses
}

// AbxLS scores submissions against the abxLS dataset. The dataset must be
// pulled before running.
type AbxLS struct {
	// DatasetDir overrides the installed dataset location, used by tests.
	DatasetDir string
}

func (b *AbxLS) Name() string { return Name }

func (b *AbxLS) Doc() string {
	return "Phonetic ABX benchmark on librispeech. Measures how well submitted frame " +
		"features separate minimal phone triplets, within and across speakers. Requires the " +
		DatasetName + " dataset."
}

func (b *AbxLS) Sets() []string {
	return []string{"dev-clean", "dev-other", "test-clean", "test-other"}
}

func (b *AbxLS) Tasks() []string { return []string{"phonetic"} }

func (b *AbxLS) datasetDir() (string, error) {
	if b.DatasetDir != "" {
		return b.DatasetDir, nil
	}
	dir := filepath.Join(settings.Get().DatasetsDir(), DatasetName)
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("dataset %s is not installed, run `zrc datasets pull %s`", DatasetName, DatasetName)
	}
	return dir, nil
}

func (b *AbxLS) InitSubmission(dir string) error {
	for _, set := range b.Sets() {
		if err := os.MkdirAll(filepath.Join(dir, set), 0o755); err != nil {
			return err
		}
	}
	if err := submission.MetaTemplate(Name).Save(dir); err != nil {
		return err
	}
	return b.WriteParams(dir)
}

func (b *AbxLS) WriteParams(dir string) error {
	return benchmark.WriteParamsFile(dir, DefaultParams())
}

func (b *AbxLS) loadParams(dir string) (Params, error) {
	params := DefaultParams()
	if err := benchmark.LoadParamsFile(dir, &params); err != nil {
		return params, err
	}
	return params, nil
}

func (b *AbxLS) Validate(ctx context.Context, dir string, opts benchmark.RunOptions) ([]benchmark.ValidationResponse, error) {
	var responses []benchmark.ValidationResponse

	if _, err := submission.LoadMeta(dir); err != nil {
		responses = append(responses, benchmark.Error(dir, "invalid meta file: %v", err))
	}
	params, err := b.loadParams(dir)
	if err != nil {
		responses = append(responses, benchmark.Error(benchmark.ParamsFile(dir), "invalid params file: %v", err))
	} else {
		responses = append(responses, params.validate()...)
	}

	datasetDir, err := b.datasetDir()
	if err != nil {
		return nil, err
	}

	for _, set := range b.Sets() {
		if !opts.WantSet(set) {
			continue
		}
		tokens, err := loadItemFile(filepath.Join(datasetDir, set+".item"))
		if err != nil {
			responses = append(responses, benchmark.Error(datasetDir, "cannot read item file for %s: %v", set, err))
			continue
		}
		files := map[string]bool{}
		expected := make([]string, 0, 64)
		for _, token := range tokens {
			if !files[token.File] {
				files[token.File] = true
				expected = append(expected, token.File)
			}
		}
		responses = append(responses, benchmark.FileListChecker(filepath.Join(dir, set), expected)...)
	}
	return responses, nil
}

func (b *AbxLS) Run(ctx context.Context, dir string, opts benchmark.RunOptions) error {
	datasetDir, err := b.datasetDir()
	if err != nil {
		return err
	}
	params, err := b.loadParams(dir)
	if err != nil {
		return fmt.Errorf("load params: %w", err)
	}
	if responses := params.validate(); benchmark.HasErrors(responses) {
		return fmt.Errorf("invalid params: %s", responses[0].Message)
	}

	outputDir := opts.Output
	if outputDir == "" {
		outputDir = submission.ScoresDir(dir)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	type resultRow struct {
		Set   string
		Mode  string
		Score float64
	}
	var results []resultRow
	for _, set := range b.Sets() {
		if !opts.WantSet(set) {
			continue
		}
		if !opts.Quiet {
			fmt.Printf("scoring phonetic %s\n", set)
		}
		segments, err := b.loadSegments(ctx, datasetDir, dir, set, params)
		if err != nil {
			return fmt.Errorf("phonetic %s: %w", set, err)
		}
		for _, mode := range params.modes() {
			var score float64
			if mode == "within" {
				score, err = scoreWithin(segments, params)
			} else {
				score, err = scoreAcross(segments, params)
			}
			if err != nil {
				return fmt.Errorf("phonetic %s %s: %w", set, mode, err)
			}
			results = append(results, resultRow{Set: set, Mode: mode, Score: score})
		}
	}
	if len(results) == 0 {
		return fmt.Errorf("nothing to score, check the set filter")
	}

	f, err := os.Create(filepath.Join(outputDir, ResultFileName))
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"dataset", "mode", "score"}); err != nil {
		return err
	}
	for _, r := range results {
		if err := w.Write([]string{r.Set, r.Mode, fmt.Sprintf("%.4f", r.Score)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// loadSegments reads the item file of one subset and pools the matching
// slice of every submitted feature file, loading files in parallel.
func (b *AbxLS) loadSegments(ctx context.Context, datasetDir, submissionDir, set string, params Params) ([]segment, error) {
	tokens, err := loadItemFile(filepath.Join(datasetDir, set+".item"))
	if err != nil {
		return nil, err
	}

	byFile := map[string][]int{}
	for i, token := range tokens {
		byFile[token.File] = append(byFile[token.File], i)
	}

	segments := make([]segment, len(tokens))
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	njobs := params.NJobs
	if njobs <= 0 {
		njobs = 1
	}
	eg.SetLimit(njobs)
	for file, indices := range byFile {
		file, indices := file, indices
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			frames, err := benchmark.LoadFeatureFile(filepath.Join(submissionDir, set, file+".txt"))
			if err != nil {
				return err
			}
			for _, i := range indices {
				token := tokens[i]
				vector, err := segmentVector(frames, token.Onset, token.Offset, params.FeatureSize)
				if err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				mu.Lock()
				segments[i] = segment{itemToken: token, Vector: vector}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return segments, nil
}
