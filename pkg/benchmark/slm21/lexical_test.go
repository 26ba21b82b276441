package slm21

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyBand(t *testing.T) {
	tests := []struct {
		freq int
		want string
	}{
		{0, "oov"},
		{1, "1-5"},
		{4, "1-5"},
		{5, "6-20"},
		{19, "6-20"},
		{20, "21-100"},
		{99, "21-100"},
		{100, ">100"},
		{100000, ">100"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, frequencyBand(tt.freq), "freq=%d", tt.freq)
	}
}

func TestScoreLexical(t *testing.T) {
	gold := []lexicalGoldRow{
		{Filename: "w_v1", Voice: "v1", Word: "cat", Phones: "K AE T", Frequency: 10, Length: 3, Correct: true, ID: "1"},
		{Filename: "nw_v1", Voice: "v1", Word: "caz", Phones: "K AE Z", Length: 3, Correct: false, ID: "1"},
		{Filename: "w_v2", Voice: "v2", Word: "cat", Phones: "K AE T", Frequency: 10, Length: 3, Correct: true, ID: "1"},
		{Filename: "nw_v2", Voice: "v2", Word: "caz", Phones: "K AE Z", Length: 3, Correct: false, ID: "1"},
	}
	scores := map[string]float64{
		"w_v1":  -1.0, // word wins on voice 1
		"nw_v1": -2.0,
		"w_v2":  -3.0, // tie on voice 2
		"nw_v2": -3.0,
	}

	pairs, err := scoreLexical(gold, scores)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "cat", pairs[0].Word)
	assert.Equal(t, "caz", pairs[0].NonWord)
	assert.InDelta(t, 0.75, pairs[0].Score, 1e-9) // (1.0 + 0.5) / 2
}

func TestScoreLexicalMissingScore(t *testing.T) {
	gold := []lexicalGoldRow{
		{Filename: "w", Voice: "v1", Word: "cat", Correct: true, ID: "1"},
		{Filename: "nw", Voice: "v1", Word: "caz", Correct: false, ID: "1"},
	}
	_, err := scoreLexical(gold, map[string]float64{"w": 1.0})
	assert.ErrorContains(t, err, "no score for nw")
}

func TestRunLexical(t *testing.T) {
	datasetDir := t.TempDir()
	goldDir := filepath.Join(datasetDir, "lexical", "dev")
	require.NoError(t, os.MkdirAll(goldDir, 0o755))
	gold := "filename,voice,frequency,word,phones,length,correct,id\n" +
		"w_v1,v1,10,cat,K AE T,3,1,1\n" +
		"nw_v1,v1,,,K AE Z,3,0,1\n" +
		"w2_v1,v1,0,zyx,Z Y X,3,1,2\n" +
		"nw2_v1,v1,,,Z Y Q,3,0,2\n"
	require.NoError(t, os.WriteFile(filepath.Join(goldDir, "gold.csv"), []byte(gold), 0o644))

	submissionDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(submissionDir, "lexical"), 0o755))
	scores := "w_v1 -1.0\nnw_v1 -2.0\nw2_v1 -5.0\nnw2_v1 -4.0\n"
	require.NoError(t, os.WriteFile(filepath.Join(submissionDir, "lexical", "dev.txt"), []byte(scores), 0o644))

	outputDir := t.TempDir()
	require.NoError(t, runLexical(datasetDir, submissionDir, outputDir, "dev"))

	byPair, err := os.ReadFile(filepath.Join(outputDir, "score_lexical_dev_by_pair.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(byPair), "cat,K AE Z,1.0000")
	assert.Contains(t, string(byPair), "zyx,Z Y Q,0.0000")

	byFreq, err := os.ReadFile(filepath.Join(outputDir, "score_lexical_dev_by_frequency.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(byFreq), "oov,1,0.0000")
	assert.Contains(t, string(byFreq), "6-20,1,1.0000")

	byLength, err := os.ReadFile(filepath.Join(outputDir, "score_lexical_dev_by_length.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(byLength), "3,2,0.5000")
}
