package slm21

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerospeech.io/zrc/pkg/benchmark"
	"zerospeech.io/zrc/pkg/submission"
)

func TestRegistered(t *testing.T) {
	b, err := benchmark.Get(Name)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "test"}, b.Sets())
	assert.Equal(t, []string{"lexical", "semantic"}, b.Tasks())
}

func TestInitSubmission(t *testing.T) {
	dir := t.TempDir()
	b := &SLM21{}
	require.NoError(t, b.InitSubmission(dir))

	meta, err := submission.LoadMeta(dir)
	require.NoError(t, err)
	assert.Equal(t, Name, meta.Benchmark)

	params := DefaultParams()
	require.NoError(t, benchmark.LoadParamsFile(dir, &params))
	assert.Equal(t, "euclidean", params.Semantic.Metric)
	assert.Equal(t, "mean", params.Semantic.Pooling)

	for _, sub := range []string{
		"lexical",
		filepath.Join("semantic", "dev", "synthetic"),
		filepath.Join("semantic", "test", "librispeech"),
	} {
		fi, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	}
}

func TestValidate(t *testing.T) {
	datasetDir := t.TempDir()
	lexDir := filepath.Join(datasetDir, "lexical", "dev")
	require.NoError(t, os.MkdirAll(lexDir, 0o755))
	gold := "filename,voice,frequency,word,phones,length,correct,id\n" +
		"w_v1,v1,10,cat,K AE T,3,1,1\n" +
		"nw_v1,v1,,,K AE Z,3,0,1\n"
	require.NoError(t, os.WriteFile(filepath.Join(lexDir, "gold.csv"), []byte(gold), 0o644))

	dir := t.TempDir()
	b := &SLM21{DatasetDir: datasetDir}
	require.NoError(t, b.InitSubmission(dir))

	opts := benchmark.RunOptions{Sets: []string{"dev"}, Tasks: []string{"lexical"}}

	// empty submission, the score file is missing
	responses, err := b.Validate(context.Background(), dir, opts)
	require.NoError(t, err)
	assert.True(t, benchmark.HasErrors(responses))

	scores := "w_v1 -1.0\nnw_v1 -2.0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lexical", "dev.txt"), []byte(scores), 0o644))

	responses, err = b.Validate(context.Background(), dir, opts)
	require.NoError(t, err)
	assert.False(t, benchmark.HasErrors(responses))
}

func TestValidateBadParams(t *testing.T) {
	datasetDir := t.TempDir()
	dir := t.TempDir()
	b := &SLM21{DatasetDir: datasetDir}
	require.NoError(t, b.InitSubmission(dir))

	bad := "semantic:\n  metric: manhattan\n  pooling: max\n  n_jobs: 1\n"
	require.NoError(t, os.WriteFile(benchmark.ParamsFile(dir), []byte(bad), 0o644))

	responses, err := b.Validate(context.Background(), dir, benchmark.RunOptions{Sets: []string{"none"}})
	require.NoError(t, err)
	assert.True(t, benchmark.HasErrors(responses))
}
