// Package leaderboard turns score directories into leaderboard entries and
// keeps leaderboards ordered.
package leaderboard

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"zerospeech.io/zrc/pkg/submission"
	"zerospeech.io/zrc/pkg/types"
)

// extractor folds the result CSVs of one benchmark into named scores plus
// the overall score used for ranking, higher is better.
type extractor func(sd *submission.ScoreDir) (map[string]float64, float64, error)

var extractors = map[string]extractor{
	"sLM21":  extractSLM21,
	"abx-LS": extractAbxLS,
}

// GenerateEntry builds the leaderboard entry for a scored submission. The
// score directory must carry a meta file, in itself or its parent.
func GenerateEntry(sd *submission.ScoreDir, submitted time.Time) (*types.LeaderboardEntry, error) {
	if sd.Meta == nil {
		return nil, fmt.Errorf("score directory %s has no meta file", sd.Location)
	}
	extract, ok := extractors[sd.Meta.Benchmark]
	if !ok {
		return nil, fmt.Errorf("no leaderboard format for benchmark %q", sd.Meta.Benchmark)
	}
	scores, overall, err := extract(sd)
	if err != nil {
		return nil, err
	}
	return &types.LeaderboardEntry{
		Benchmark:   sd.Meta.Benchmark,
		Submitter:   sd.Meta.Author,
		Institution: sd.Meta.Affiliation,
		System:      sd.Meta.SystemName,
		Scores:      scores,
		Overall:     overall,
		Submitted:   submitted,
	}, nil
}

// extractSLM21 averages the lexical accuracy and the semantic correlations
// per set. The overall score is the mean of the lexical accuracy and the
// rescaled semantic correlation.
func extractSLM21(sd *submission.ScoreDir) (map[string]float64, float64, error) {
	scores := map[string]float64{}
	for _, set := range []string{"dev", "test"} {
		lexical, err := sd.ColumnMean(fmt.Sprintf("score_lexical_%s_by_pair.csv", set), "score")
		if err != nil {
			return nil, 0, err
		}
		scores["lexical_"+set] = lexical

		semantic, err := sd.ColumnMean(fmt.Sprintf("score_semantic_%s_correlation.csv", set), "correlation")
		if err != nil {
			return nil, 0, err
		}
		scores["semantic_"+set] = semantic
	}
	lexical := (scores["lexical_dev"] + scores["lexical_test"]) / 2
	semantic := (scores["semantic_dev"] + scores["semantic_test"]) / 2
	overall := (lexical + semantic/100) / 2
	return scores, overall, nil
}

// extractAbxLS keys every error rate by subset and mode. The overall score
// is one minus the mean error.
func extractAbxLS(sd *submission.ScoreDir) (map[string]float64, float64, error) {
	header, rows, err := sd.ReadCSV("score_phonetic.csv")
	if err != nil {
		return nil, 0, err
	}
	col := map[string]int{}
	for i, h := range header {
		col[h] = i
	}
	for _, name := range []string{"dataset", "mode", "score"} {
		if _, ok := col[name]; !ok {
			return nil, 0, fmt.Errorf("score_phonetic.csv has no column %q", name)
		}
	}
	scores := map[string]float64{}
	sum := 0.0
	for _, row := range rows {
		v, err := strconv.ParseFloat(row[col["score"]], 64)
		if err != nil {
			return nil, 0, fmt.Errorf("bad score %q in score_phonetic.csv: %w", row[col["score"]], err)
		}
		scores[row[col["dataset"]]+"_"+row[col["mode"]]] = v
		sum += v
	}
	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("score_phonetic.csv has no data rows")
	}
	return scores, 1 - sum/float64(len(rows)), nil
}

// Sort orders entries best first: descending overall score, ties broken by
// the earlier submission date.
func Sort(entries []types.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Overall != entries[j].Overall {
			return entries[i].Overall > entries[j].Overall
		}
		return entries[i].Submitted.Before(entries[j].Submitted)
	})
}

// Merge inserts an entry into a leaderboard, replacing a previous entry of
// the same submitter and system, and reorders it.
func Merge(board *types.Leaderboard, entry types.LeaderboardEntry) {
	kept := board.Entries[:0]
	for _, e := range board.Entries {
		if e.Submitter == entry.Submitter && e.System == entry.System {
			continue
		}
		kept = append(kept, e)
	}
	board.Entries = append(kept, entry)
	Sort(board.Entries)
	board.Updated = time.Now().UTC()
}

// WriteFile serializes a leaderboard, indented for publication.
func WriteFile(path string, board *types.Leaderboard) error {
	content, err := json.MarshalIndent(board, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o644)
}

// ReadFile loads a serialized leaderboard.
func ReadFile(path string) (*types.Leaderboard, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	board := &types.Leaderboard{}
	if err := json.Unmarshal(content, board); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return board, nil
}
