package submission

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSubmission(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	meta := MetaTemplate("sLM21")
	meta.Author = "jane"
	require.NoError(t, meta.Save(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lexical_dev.txt"), []byte("f1 0.5\n"), 0o644))
	return dir
}

func TestMetaRoundtrip(t *testing.T) {
	dir := writeSubmission(t)

	meta, err := LoadMeta(dir)
	require.NoError(t, err)
	assert.Equal(t, "sLM21", meta.Benchmark)
	assert.Equal(t, "jane", meta.Author)

	name, err := BenchmarkFromSubmission(dir)
	require.NoError(t, err)
	assert.Equal(t, "sLM21", name)
}

func TestBenchmarkFromSubmissionMissingMeta(t *testing.T) {
	_, err := BenchmarkFromSubmission(t.TempDir())
	assert.Error(t, err)
}

func TestZipUnzip(t *testing.T) {
	dir := writeSubmission(t)
	archive := filepath.Join(t.TempDir(), "submission.zip")

	dgst, err := Zip(context.Background(), dir, archive)
	require.NoError(t, err)
	assert.NotEmpty(t, dgst.String())

	// zipping onto an existing archive must fail
	_, err = Zip(context.Background(), dir, archive)
	assert.Error(t, err)

	into := t.TempDir()
	require.NoError(t, Unzip(context.Background(), archive, into))

	meta, err := LoadMeta(into)
	require.NoError(t, err)
	assert.Equal(t, "jane", meta.Author)

	content, err := os.ReadFile(filepath.Join(into, "lexical_dev.txt"))
	require.NoError(t, err)
	assert.Equal(t, "f1 0.5\n", string(content))
}

func TestZipRefusesNonSubmission(t *testing.T) {
	_, err := Zip(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "x.zip"))
	assert.Error(t, err)
}

func TestScoreDirColumnMean(t *testing.T) {
	dir := t.TempDir()
	scores := filepath.Join(dir, ScoresDirName)
	require.NoError(t, os.MkdirAll(scores, 0o755))
	require.NoError(t, MetaTemplate("sLM21").Save(dir))

	csv := "word,score\nfoo,0.5\nbar,1.0\nbaz,0.75\n"
	require.NoError(t, os.WriteFile(filepath.Join(scores, "score_lexical_dev_by_pair.csv"), []byte(csv), 0o644))

	sd, err := LoadScoreDir(scores)
	require.NoError(t, err)
	require.NotNil(t, sd.Meta, "meta must be picked up from the parent dir")

	mean, err := sd.ColumnMean("score_lexical_dev_by_pair.csv", "score")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, mean, 1e-9)

	_, err = sd.ColumnMean("score_lexical_dev_by_pair.csv", "missing")
	assert.Error(t, err)
}
