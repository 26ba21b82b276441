// Package slm21 implements the sLM21 spoken language modeling benchmark:
// a lexical spot-the-word task and a semantic similarity task.
package slm21

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"zerospeech.io/zrc/pkg/benchmark"
	"zerospeech.io/zrc/pkg/settings"
	"zerospeech.io/zrc/pkg/submission"
)

const (
	// Name is the registry name of this benchmark.
	Name = "sLM21"
	// DatasetName is the repository item holding gold files and stimuli.
	DatasetName = "sLM21-dataset"

	taskLexical  = "lexical"
	taskSemantic = "semantic"
)

func init() {
	benchmark.Register(&SLM21{})
}

// Params are the tunable knobs of a sLM21 run, stored in the submission's
// params.yaml.
type Params struct {
	Semantic SemanticParams `json:"semantic"`
}

func DefaultParams() Params {
	return Params{Semantic: DefaultSemanticParams()}
}

// SLM21 scores submissions against the sLM21 dataset. The dataset must be
// pulled before running.
type SLM21 struct {
	// DatasetDir overrides the installed dataset location, used by tests.
	DatasetDir string
}

func (b *SLM21) Name() string { return Name }

func (b *SLM21) Doc() string {
	return "Spoken language modeling benchmark. The lexical task checks that real words " +
		"score higher than matched non-words; the semantic task correlates model distances " +
		"between spoken words with human similarity judgements. Requires the " + DatasetName + " dataset."
}

func (b *SLM21) Sets() []string  { return []string{"dev", "test"} }
func (b *SLM21) Tasks() []string { return []string{taskLexical, taskSemantic} }

func (b *SLM21) datasetDir() (string, error) {
	if b.DatasetDir != "" {
		return b.DatasetDir, nil
	}
	dir := filepath.Join(settings.Get().DatasetsDir(), DatasetName)
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("dataset %s is not installed, run `zrc datasets pull %s`", DatasetName, DatasetName)
	}
	return dir, nil
}

func (b *SLM21) InitSubmission(dir string) error {
	dirs := []string{
		filepath.Join(dir, taskLexical),
		filepath.Join(dir, taskSemantic, "dev", "synthetic"),
		filepath.Join(dir, taskSemantic, "dev", "librispeech"),
		filepath.Join(dir, taskSemantic, "test", "synthetic"),
		filepath.Join(dir, taskSemantic, "test", "librispeech"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	if err := submission.MetaTemplate(Name).Save(dir); err != nil {
		return err
	}
	return b.WriteParams(dir)
}

func (b *SLM21) WriteParams(dir string) error {
	return benchmark.WriteParamsFile(dir, DefaultParams())
}

func (b *SLM21) loadParams(dir string) (Params, error) {
	params := DefaultParams()
	if err := benchmark.LoadParamsFile(dir, &params); err != nil {
		return params, err
	}
	return params, nil
}

func (b *SLM21) Validate(ctx context.Context, dir string, opts benchmark.RunOptions) ([]benchmark.ValidationResponse, error) {
	var responses []benchmark.ValidationResponse

	if _, err := submission.LoadMeta(dir); err != nil {
		responses = append(responses, benchmark.Error(dir, "invalid meta file: %v", err))
	}
	params, err := b.loadParams(dir)
	if err != nil {
		responses = append(responses, benchmark.Error(benchmark.ParamsFile(dir), "invalid params file: %v", err))
	} else {
		if !validMetric(params.Semantic.Metric) {
			responses = append(responses, benchmark.Error(benchmark.ParamsFile(dir), "unknown metric %q", params.Semantic.Metric))
		}
		if !validPooling(params.Semantic.Pooling) {
			responses = append(responses, benchmark.Error(benchmark.ParamsFile(dir), "unknown pooling %q", params.Semantic.Pooling))
		}
	}

	datasetDir, err := b.datasetDir()
	if err != nil {
		return nil, err
	}

	for _, set := range b.Sets() {
		if !opts.WantSet(set) {
			continue
		}
		if opts.WantTask(taskLexical) {
			responses = append(responses, b.validateLexical(datasetDir, dir, set)...)
		}
		if opts.WantTask(taskSemantic) {
			responses = append(responses, b.validateSemantic(datasetDir, dir, set)...)
		}
	}
	return responses, nil
}

func (b *SLM21) validateLexical(datasetDir, dir, set string) []benchmark.ValidationResponse {
	scoreFile := filepath.Join(dir, taskLexical, set+".txt")
	responses := benchmark.FileExistsChecker(scoreFile)
	if benchmark.HasErrors(responses) {
		return responses
	}

	scores, err := loadScoreFile(scoreFile)
	if err != nil {
		return append(responses, benchmark.Error(scoreFile, "cannot parse score file: %v", err))
	}
	gold, err := loadLexicalGold(filepath.Join(datasetDir, taskLexical, set, "gold.csv"))
	if err != nil {
		return append(responses, benchmark.Error(datasetDir, "cannot read gold file: %v", err))
	}
	given := make([]string, 0, len(scores))
	for filename := range scores {
		given = append(given, filename)
	}
	expected := make([]string, 0, len(gold))
	for _, row := range gold {
		expected = append(expected, row.Filename)
	}
	return append(responses, benchmark.ListChecker(given, expected)...)
}

func (b *SLM21) validateSemantic(datasetDir, dir, set string) []benchmark.ValidationResponse {
	gold, err := loadSemanticGold(filepath.Join(datasetDir, taskSemantic, set, "gold.csv"))
	if err != nil {
		return []benchmark.ValidationResponse{benchmark.Error(datasetDir, "cannot read gold file: %v", err)}
	}
	expected := map[string][]string{}
	for _, row := range gold {
		expected[row.Type] = append(expected[row.Type], row.Filename)
	}
	var responses []benchmark.ValidationResponse
	for typ, filenames := range expected {
		featuresDir := filepath.Join(dir, taskSemantic, set, typ)
		responses = append(responses, benchmark.FileListChecker(featuresDir, filenames)...)
	}
	return responses
}

func (b *SLM21) Run(ctx context.Context, dir string, opts benchmark.RunOptions) error {
	datasetDir, err := b.datasetDir()
	if err != nil {
		return err
	}
	params, err := b.loadParams(dir)
	if err != nil {
		return fmt.Errorf("load params: %w", err)
	}

	outputDir := opts.Output
	if outputDir == "" {
		outputDir = submission.ScoresDir(dir)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	for _, set := range b.Sets() {
		if !opts.WantSet(set) {
			continue
		}
		if opts.WantTask(taskLexical) {
			if !opts.Quiet {
				fmt.Printf("scoring lexical %s\n", set)
			}
			if err := runLexical(datasetDir, dir, outputDir, set); err != nil {
				return fmt.Errorf("lexical %s: %w", set, err)
			}
		}
		if opts.WantTask(taskSemantic) {
			if !opts.Quiet {
				fmt.Printf("scoring semantic %s\n", set)
			}
			if err := runSemantic(ctx, datasetDir, dir, outputDir, set, params.Semantic); err != nil {
				return fmt.Errorf("semantic %s: %w", set, err)
			}
		}
	}
	return nil
}
