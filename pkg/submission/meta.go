package submission

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

const MetaFileName = "meta.yaml"

// MetaFile describes who submitted what. It travels inside every submission
// archive and seeds the leaderboard entry.
type MetaFile struct {
	Benchmark       string `yaml:"benchmark" json:"benchmark"`
	Author          string `yaml:"author" json:"author"`
	Affiliation     string `yaml:"affiliation" json:"affiliation"`
	SystemName      string `yaml:"system_name" json:"system_name"`
	Description     string `yaml:"description" json:"description"`
	GPUBudgetHours  float64 `yaml:"gpu_budget_hours" json:"gpu_budget_hours"`
	TrainSet        string `yaml:"train_set" json:"train_set"`
	AuthorEmail     string `yaml:"author_email" json:"author_email"`
	OpenSource      bool   `yaml:"open_source" json:"open_source"`
	PublicationURL  string `yaml:"publication_url,omitempty" json:"publication_url,omitempty"`
}

func LoadMeta(dir string) (*MetaFile, error) {
	content, err := os.ReadFile(filepath.Join(dir, MetaFileName))
	if err != nil {
		return nil, err
	}
	meta := &MetaFile{}
	if err := yaml.Unmarshal(content, meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", MetaFileName, err)
	}
	return meta, nil
}

func (m *MetaFile) Save(dir string) error {
	content, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, MetaFileName), content, 0o644)
}

// BenchmarkFromSubmission reads only the benchmark name from a submission
// directory, which is how commands discover what they are looking at.
func BenchmarkFromSubmission(dir string) (string, error) {
	meta, err := LoadMeta(dir)
	if err != nil {
		return "", err
	}
	if meta.Benchmark == "" {
		return "", fmt.Errorf("%s in %s does not name a benchmark", MetaFileName, dir)
	}
	return meta.Benchmark, nil
}

// MetaTemplate is written by `zrc submission init`.
func MetaTemplate(benchmark string) *MetaFile {
	return &MetaFile{
		Benchmark:   benchmark,
		Author:      "<author>",
		Affiliation: "<affiliation>",
		SystemName:  "<system name>",
		Description: "<description of the system>",
		TrainSet:    "<train set used>",
	}
}
