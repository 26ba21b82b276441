package leaderboard

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerospeech.io/zrc/pkg/submission"
	"zerospeech.io/zrc/pkg/types"
)

func writeScoreDir(t *testing.T, benchmark string, files map[string]string) *submission.ScoreDir {
	t.Helper()
	dir := t.TempDir()
	meta := submission.MetaTemplate(benchmark)
	meta.Author = "jane"
	meta.Affiliation = "acme"
	meta.SystemName = "cpc-big"
	require.NoError(t, meta.Save(dir))

	scores := filepath.Join(dir, submission.ScoresDirName)
	require.NoError(t, os.MkdirAll(scores, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(scores, name), []byte(content), 0o644))
	}

	sd, err := submission.LoadScoreDir(scores)
	require.NoError(t, err)
	return sd
}

func TestGenerateEntrySLM21(t *testing.T) {
	sd := writeScoreDir(t, "sLM21", map[string]string{
		"score_lexical_dev_by_pair.csv":        "word,non word,score\na,b,0.8\nc,d,0.6\n",
		"score_lexical_test_by_pair.csv":       "word,non word,score\na,b,1.0\n",
		"score_semantic_dev_correlation.csv":   "type,dataset,correlation\nsynthetic,wordsim,50.0\n",
		"score_semantic_test_correlation.csv":  "type,dataset,correlation\nsynthetic,wordsim,30.0\n",
	})

	entry, err := GenerateEntry(sd, time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "sLM21", entry.Benchmark)
	assert.Equal(t, "jane", entry.Submitter)
	assert.Equal(t, "acme", entry.Institution)
	assert.Equal(t, "cpc-big", entry.System)
	assert.InDelta(t, 0.7, entry.Scores["lexical_dev"], 1e-9)
	assert.InDelta(t, 40.0, (entry.Scores["semantic_dev"]+entry.Scores["semantic_test"])/2, 1e-9)
	// (0.85 + 0.40) / 2
	assert.InDelta(t, 0.625, entry.Overall, 1e-9)
}

func TestGenerateEntryAbxLS(t *testing.T) {
	sd := writeScoreDir(t, "abx-LS", map[string]string{
		"score_phonetic.csv": "dataset,mode,score\ndev-clean,within,0.05\ndev-clean,across,0.15\n",
	})

	entry, err := GenerateEntry(sd, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 0.05, entry.Scores["dev-clean_within"], 1e-9)
	assert.InDelta(t, 0.9, entry.Overall, 1e-9)
}

func TestGenerateEntryUnknownBenchmark(t *testing.T) {
	sd := writeScoreDir(t, "mystery", nil)
	_, err := GenerateEntry(sd, time.Now())
	assert.ErrorContains(t, err, "no leaderboard format")
}

func TestSortAndMerge(t *testing.T) {
	early := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	board := &types.Leaderboard{Benchmark: "sLM21", Entries: []types.LeaderboardEntry{
		{Submitter: "a", System: "s1", Overall: 0.5, Submitted: late},
		{Submitter: "b", System: "s2", Overall: 0.5, Submitted: early},
		{Submitter: "c", System: "s3", Overall: 0.9, Submitted: late},
	}}

	Sort(board.Entries)
	assert.Equal(t, "c", board.Entries[0].Submitter)
	// same score, the earlier submission ranks first
	assert.Equal(t, "b", board.Entries[1].Submitter)
	assert.Equal(t, "a", board.Entries[2].Submitter)

	// resubmission replaces the old entry and is reranked
	Merge(board, types.LeaderboardEntry{Submitter: "a", System: "s1", Overall: 0.95, Submitted: late})
	require.Len(t, board.Entries, 3)
	assert.Equal(t, "a", board.Entries[0].Submitter)
	assert.False(t, board.Updated.IsZero())
}

func TestReadWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaderboard.json")
	board := &types.Leaderboard{Benchmark: "abx-LS", Entries: []types.LeaderboardEntry{
		{Benchmark: "abx-LS", Submitter: "jane", Overall: 0.9},
	}}
	require.NoError(t, WriteFile(path, board))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, board.Benchmark, got.Benchmark)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "jane", got.Entries[0].Submitter)
}
