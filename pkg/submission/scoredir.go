package submission

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ScoresDirName is where benchmark runs put their result CSVs, relative to
// the submission directory.
const ScoresDirName = "scores"

// ScoreDir wraps a directory of result CSVs written by a benchmark run.
type ScoreDir struct {
	Location string
	Meta     *MetaFile
}

// LoadScoreDir opens a score directory, picking up the meta file from the
// directory itself or the enclosing submission.
func LoadScoreDir(location string) (*ScoreDir, error) {
	fi, err := os.Stat(location)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", location)
	}
	sd := &ScoreDir{Location: location}
	for _, dir := range []string{location, filepath.Dir(location)} {
		if meta, err := LoadMeta(dir); err == nil {
			sd.Meta = meta
			break
		}
	}
	return sd, nil
}

// ReadCSV reads one result file, returning header and rows.
func (s *ScoreDir) ReadCSV(name string) ([]string, [][]string, error) {
	f, err := os.Open(filepath.Join(s.Location, name))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", name)
	}
	return records[0], records[1:], nil
}

// ColumnMean averages a numeric column of a result file.
func (s *ScoreDir) ColumnMean(name string, column string) (float64, error) {
	header, rows, err := s.ReadCSV(name)
	if err != nil {
		return 0, err
	}
	col := -1
	for i, h := range header {
		if h == column {
			col = i
			break
		}
	}
	if col == -1 {
		return 0, fmt.Errorf("%s has no column %q", name, column)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%s has no data rows", name)
	}
	sum := 0.0
	n := 0
	for _, row := range rows {
		v, err := strconv.ParseFloat(row[col], 64)
		if err != nil {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("%s column %q has no numeric values", name, column)
	}
	return sum / float64(n), nil
}
