package slm21

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// lexicalGoldRow is one stimulus of the lexical (spot-the-word) gold file.
type lexicalGoldRow struct {
	Filename  string
	Voice     string
	Frequency int // occurrences in the train set, 0 for oov / non-words
	Word      string
	Phones    string
	Length    int
	Correct   bool // true for the real word of the pair
	ID        string
}

func loadLexicalGold(path string) ([]lexicalGoldRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read gold header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"filename", "voice", "frequency", "word", "phones", "length", "correct", "id"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("gold file %s has no column %q", path, required)
		}
	}

	var rows []lexicalGoldRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		frequency, _ := strconv.Atoi(record[col["frequency"]])
		length, _ := strconv.Atoi(record[col["length"]])
		correct, _ := strconv.Atoi(record[col["correct"]])
		row := lexicalGoldRow{
			Filename:  record[col["filename"]],
			Voice:     record[col["voice"]],
			Frequency: frequency,
			Word:      record[col["word"]],
			Phones:    record[col["phones"]],
			Length:    length,
			Correct:   correct == 1,
			ID:        record[col["id"]],
		}
		// non-words may have no textual form, fall back to the phonemic one
		if !row.Correct && row.Word == "" {
			row.Word = row.Phones
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// loadScoreFile reads a submission score file: one "filename score" pair per
// line, whitespace separated.
func loadScoreFile(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scores := map[string]float64{}
	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s:%d: expected \"filename score\", got %q", path, lineno, line)
		}
		score, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad score %q: %w", path, lineno, fields[1], err)
		}
		scores[fields[0]] = score
	}
	return scores, scanner.Err()
}

// semanticGoldRow maps one audio token to its word.
type semanticGoldRow struct {
	Type     string // librispeech or synthetic
	Filename string
	Voice    string
	Word     string
}

func loadSemanticGold(path string) ([]semanticGoldRow, error) {
	records, col, err := readCSVWithHeader(path, "type", "filename", "voice", "word")
	if err != nil {
		return nil, err
	}
	rows := make([]semanticGoldRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, semanticGoldRow{
			Type:     record[col["type"]],
			Filename: record[col["filename"]],
			Voice:    record[col["voice"]],
			Word:     record[col["word"]],
		})
	}
	return rows, nil
}

// semanticPairRow is one human-scored word pair.
type semanticPairRow struct {
	Type        string
	Dataset     string
	Word1       string
	Word2       string
	Similarity  float64
	Relatedness float64
	// the gold files mark absent judgements with empty cells
	HasSimilarity  bool
	HasRelatedness bool
}

func loadSemanticPairs(path string) ([]semanticPairRow, error) {
	records, col, err := readCSVWithHeader(path, "type", "dataset", "word_1", "word_2", "similarity", "relatedness")
	if err != nil {
		return nil, err
	}
	rows := make([]semanticPairRow, 0, len(records))
	for _, record := range records {
		row := semanticPairRow{
			Type:    record[col["type"]],
			Dataset: record[col["dataset"]],
			Word1:   record[col["word_1"]],
			Word2:   record[col["word_2"]],
		}
		if v := strings.TrimSpace(record[col["similarity"]]); v != "" {
			if row.Similarity, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("%s: bad similarity %q: %w", path, v, err)
			}
			row.HasSimilarity = true
		}
		if v := strings.TrimSpace(record[col["relatedness"]]); v != "" {
			if row.Relatedness, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("%s: bad relatedness %q: %w", path, v, err)
			}
			row.HasRelatedness = true
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readCSVWithHeader(path string, required ...string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, nil, fmt.Errorf("%s has no column %q", path, name)
		}
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return records, col, nil
}

// writeCSV writes a result file with %.4f floats, the format the official
// leaderboards ingest.
func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
