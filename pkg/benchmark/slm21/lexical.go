package slm21

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
)

// frequencyBands buckets a train-set word frequency the same way the official
// evaluation does. Non-words and unseen words count as out of vocabulary.
var frequencyBands = []struct {
	Label string
	Lo    int // inclusive
	Hi    int // exclusive, -1 for unbounded
}{
	{"oov", 0, 1},
	{"1-5", 1, 5},
	{"6-20", 5, 20},
	{"21-100", 20, 100},
	{">100", 100, -1},
}

func frequencyBand(freq int) string {
	for _, band := range frequencyBands {
		if freq >= band.Lo && (band.Hi == -1 || freq < band.Hi) {
			return band.Label
		}
	}
	return "oov"
}

// lexicalPair is a word / non-word stimulus pair scored across all voices.
type lexicalPair struct {
	ID        string
	Word      string
	NonWord   string
	Frequency int
	Length    int
	Score     float64
}

// scoreLexical merges the submission scores into the gold pairs. A pair is
// correct when the real word got the higher score; ties count half.
func scoreLexical(gold []lexicalGoldRow, scores map[string]float64) ([]lexicalPair, error) {
	type voiced struct {
		word    *lexicalGoldRow
		nonWord *lexicalGoldRow
	}
	byKey := map[string]*voiced{}
	order := []string{}
	for i := range gold {
		row := &gold[i]
		key := row.Voice + "\x00" + row.ID
		entry, ok := byKey[key]
		if !ok {
			entry = &voiced{}
			byKey[key] = entry
			order = append(order, key)
		}
		if row.Correct {
			entry.word = row
		} else {
			entry.nonWord = row
		}
	}

	type agg struct {
		pair   lexicalPair
		sum    float64
		voices int
	}
	byID := map[string]*agg{}
	ids := []string{}
	for _, key := range order {
		entry := byKey[key]
		if entry.word == nil || entry.nonWord == nil {
			return nil, fmt.Errorf("gold pair incomplete for voice key %q", key)
		}
		sw, ok := scores[entry.word.Filename]
		if !ok {
			return nil, fmt.Errorf("submission has no score for %s", entry.word.Filename)
		}
		snw, ok := scores[entry.nonWord.Filename]
		if !ok {
			return nil, fmt.Errorf("submission has no score for %s", entry.nonWord.Filename)
		}
		score := 0.0
		switch {
		case sw > snw:
			score = 1.0
		case sw == snw:
			score = 0.5
		}

		a, ok := byID[entry.word.ID]
		if !ok {
			a = &agg{pair: lexicalPair{
				ID:        entry.word.ID,
				Word:      entry.word.Word,
				NonWord:   entry.nonWord.Word,
				Frequency: entry.word.Frequency,
				Length:    entry.word.Length,
			}}
			byID[entry.word.ID] = a
			ids = append(ids, entry.word.ID)
		}
		a.sum += score
		a.voices++
	}

	pairs := make([]lexicalPair, 0, len(ids))
	for _, id := range ids {
		a := byID[id]
		a.pair.Score = a.sum / float64(a.voices)
		pairs = append(pairs, a.pair)
	}
	return pairs, nil
}

type lexicalGroupStat struct {
	Key   string
	N     int
	Mean  float64
	Std   float64
	order int
}

func groupLexical(pairs []lexicalPair, key func(lexicalPair) (string, int)) []lexicalGroupStat {
	groups := map[string][]float64{}
	orders := map[string]int{}
	for _, p := range pairs {
		k, order := key(p)
		groups[k] = append(groups[k], p.Score)
		orders[k] = order
	}
	stats := make([]lexicalGroupStat, 0, len(groups))
	for k, values := range groups {
		stats = append(stats, lexicalGroupStat{
			Key:   k,
			N:     len(values),
			Mean:  mean(values),
			Std:   sampleStd(values),
			order: orders[k],
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].order < stats[j].order })
	return stats
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd is the n-1 normalized standard deviation, NaN for a single value.
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// runLexical scores one evaluation set and writes the three result files.
func runLexical(datasetDir, submissionDir, outputDir, set string) error {
	gold, err := loadLexicalGold(filepath.Join(datasetDir, "lexical", set, "gold.csv"))
	if err != nil {
		return fmt.Errorf("load lexical gold: %w", err)
	}
	scores, err := loadScoreFile(filepath.Join(submissionDir, "lexical", set+".txt"))
	if err != nil {
		return fmt.Errorf("load lexical scores: %w", err)
	}
	pairs, err := scoreLexical(gold, scores)
	if err != nil {
		return err
	}

	byPair := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		byPair = append(byPair, []string{p.Word, p.NonWord, formatFloat(p.Score)})
	}
	out := func(kind string) string {
		return filepath.Join(outputDir, fmt.Sprintf("score_lexical_%s_by_%s.csv", set, kind))
	}
	if err := writeCSV(out("pair"), []string{"word", "non word", "score"}, byPair); err != nil {
		return err
	}

	bandIndex := map[string]int{}
	for i, band := range frequencyBands {
		bandIndex[band.Label] = i
	}
	byFrequency := groupLexical(pairs, func(p lexicalPair) (string, int) {
		label := frequencyBand(p.Frequency)
		return label, bandIndex[label]
	})
	rows := make([][]string, 0, len(byFrequency))
	for _, s := range byFrequency {
		rows = append(rows, []string{s.Key, strconv.Itoa(s.N), formatFloat(s.Mean), formatFloat(s.Std)})
	}
	if err := writeCSV(out("frequency"), []string{"frequency", "n", "score", "std"}, rows); err != nil {
		return err
	}

	byLength := groupLexical(pairs, func(p lexicalPair) (string, int) {
		return strconv.Itoa(p.Length), p.Length
	})
	rows = rows[:0]
	for _, s := range byLength {
		rows = append(rows, []string{s.Key, strconv.Itoa(s.N), formatFloat(s.Mean), formatFloat(s.Std)})
	}
	return writeCSV(out("length"), []string{"length", "n", "score", "std"}, rows)
}
