package abxls

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerospeech.io/zrc/pkg/benchmark"
)

func TestDefaultParams(t *testing.T) {
	params := DefaultParams()
	assert.Equal(t, "all", params.Mode)
	assert.Equal(t, "cosine", params.Distance)
	assert.InDelta(t, 0.1, params.FeatureSize, 1e-9)
	assert.Equal(t, 10, params.MaxSizeGroup)
	assert.Equal(t, 5, params.MaxXAcross)
}

func TestLoadItemFile(t *testing.T) {
	dir := t.TempDir()
	content := "#file onset offset #phone prev-phone next-phone speaker\n" +
		"utt1 0.10 0.30 AA S T spk1\n" +
		"utt1 0.30 0.50 IY T N spk2\n"
	path := filepath.Join(dir, "dev-clean.item")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tokens, err := loadItemFile(path)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "utt1", tokens[0].File)
	assert.Equal(t, "AA", tokens[0].Phone)
	assert.Equal(t, "S+T", tokens[0].Context)
	assert.Equal(t, "spk1", tokens[0].Speaker)
	assert.InDelta(t, 0.1, tokens[0].Onset, 1e-9)
	assert.InDelta(t, 0.3, tokens[0].Offset, 1e-9)
}

func TestLoadItemFileRejectsBadLines(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"short line", "utt1 0.1 0.3 AA S T\n"},
		{"bad onset", "utt1 x 0.3 AA S T spk1\n"},
		{"inverted times", "utt1 0.5 0.3 AA S T spk1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.item")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := loadItemFile(path)
			assert.Error(t, err)
		})
	}
}

func TestSegmentVector(t *testing.T) {
	frames := [][]float64{{0, 0}, {2, 4}, {4, 8}, {100, 100}}

	// [0.01, 0.03) covers frames 1 and 2 at 10ms per frame
	got, err := segmentVector(frames, 0.01, 0.03, 0.01)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 6}, got)

	// an offset past the end is clamped
	got, err = segmentVector(frames, 0.03, 0.10, 0.01)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 100}, got)

	_, err = segmentVector(frames, 0.10, 0.20, 0.01)
	assert.Error(t, err)
}

func TestAbxCellPerfectSeparation(t *testing.T) {
	as := []segment{
		{itemToken: itemToken{File: "a1"}, Vector: []float64{0, 0}},
		{itemToken: itemToken{File: "a2"}, Vector: []float64{0.1, 0}},
	}
	bs := []segment{
		{itemToken: itemToken{File: "b1"}, Vector: []float64{5, 5}},
	}

	score, err := abxCell(as, bs, as, "euclidean")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	// a single A token cannot form an A/X pair with itself
	_, err = abxCell(bs, as, bs, "euclidean")
	assert.Error(t, err)
}

func withinFixture() []segment {
	mk := func(file, phone, speaker string, v ...float64) segment {
		return segment{
			itemToken: itemToken{File: file, Onset: 0, Offset: 1, Phone: phone, Context: "S+T", Speaker: speaker},
			Vector:    v,
		}
	}
	return []segment{
		mk("a1", "AA", "spk1", 0, 0),
		mk("a2", "AA", "spk1", 0.1, 0),
		mk("b1", "IY", "spk1", 5, 5),
		mk("b2", "IY", "spk1", 5.1, 5),
	}
}

func TestScoreWithin(t *testing.T) {
	params := DefaultParams()
	params.Distance = "euclidean"

	got, err := scoreWithin(withinFixture(), params)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got, 1e-9, "well separated phones give zero error")

	_, err = scoreWithin(nil, params)
	assert.Error(t, err)
}

func TestScoreAcross(t *testing.T) {
	params := DefaultParams()
	params.Distance = "euclidean"

	segments := withinFixture()
	// a second speaker supplying the X tokens
	segments = append(segments,
		segment{itemToken: itemToken{File: "c1", Phone: "AA", Context: "S+T", Speaker: "spk2"}, Vector: []float64{0.2, 0}},
		segment{itemToken: itemToken{File: "c2", Phone: "IY", Context: "S+T", Speaker: "spk2"}, Vector: []float64{5.2, 5}},
	)

	got, err := scoreAcross(segments, params)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got, 1e-9)

	// single speaker, nothing to cross against
	_, err = scoreAcross(withinFixture(), params)
	assert.Error(t, err)
}

func TestRunEndToEnd(t *testing.T) {
	datasetDir := t.TempDir()
	item := "#file onset offset #phone prev-phone next-phone speaker\n" +
		"utt1 0.00 0.01 AA S T spk1\n" +
		"utt1 0.01 0.02 AA S T spk1\n" +
		"utt1 0.02 0.03 IY S T spk1\n" +
		"utt2 0.00 0.01 AA S T spk2\n" +
		"utt2 0.01 0.02 IY S T spk2\n"
	for _, set := range []string{"dev-clean", "dev-other", "test-clean", "test-other"} {
		require.NoError(t, os.WriteFile(filepath.Join(datasetDir, set+".item"), []byte(item), 0o644))
	}

	dir := t.TempDir()
	b := &AbxLS{DatasetDir: datasetDir}
	require.NoError(t, b.InitSubmission(dir))

	params := DefaultParams()
	params.Distance = "euclidean"
	params.FeatureSize = 0.01 // fixture frames are 10ms
	require.NoError(t, benchmark.WriteParamsFile(dir, params))

	utt1 := "0.0 0.0\n0.1 0.0\n9.0 9.0\n"
	utt2 := "0.2 0.0\n9.2 9.0\n"
	for _, set := range b.Sets() {
		require.NoError(t, os.WriteFile(filepath.Join(dir, set, "utt1.txt"), []byte(utt1), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, set, "utt2.txt"), []byte(utt2), 0o644))
	}

	responses, err := b.Validate(context.Background(), dir, benchmark.RunOptions{})
	require.NoError(t, err)
	assert.False(t, benchmark.HasErrors(responses))

	opts := benchmark.RunOptions{Sets: []string{"dev-clean"}, Quiet: true}
	require.NoError(t, b.Run(context.Background(), dir, opts))

	content, err := os.ReadFile(filepath.Join(dir, "scores", ResultFileName))
	require.NoError(t, err)
	assert.Contains(t, string(content), "dataset,mode,score")
	assert.Contains(t, string(content), "dev-clean,within,0.0000")
	assert.Contains(t, string(content), "dev-clean,across,0.0000")
}
