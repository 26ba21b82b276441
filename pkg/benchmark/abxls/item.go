package abxls

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// itemToken is one phone occurrence listed in an .item file: a time slice of
// an utterance together with its phone, surrounding context and speaker.
type itemToken struct {
	File    string
	Onset   float64
	Offset  float64
	Phone   string
	Context string // previous and next phone, joined
	Speaker string
}

// loadItemFile parses the task definition of one evaluation subset. The
// format is whitespace separated with a leading #file header line.
func loadItemFile(path string) ([]itemToken, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tokens []itemToken
	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 7 {
			return nil, fmt.Errorf("%s:%d: expected 7 columns, got %d", path, lineno, len(fields))
		}
		onset, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad onset %q: %w", path, lineno, fields[1], err)
		}
		offset, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad offset %q: %w", path, lineno, fields[2], err)
		}
		if offset <= onset {
			return nil, fmt.Errorf("%s:%d: offset %v before onset %v", path, lineno, offset, onset)
		}
		tokens = append(tokens, itemToken{
			File:    fields[0],
			Onset:   onset,
			Offset:  offset,
			Phone:   fields[3],
			Context: fields[4] + "+" + fields[5],
			Speaker: fields[6],
		})
	}
	return tokens, scanner.Err()
}

// segmentVector slices the frames covering [onset, offset) out of an
// utterance feature matrix and mean-pools them. featureSize is the frame
// duration in seconds.
func segmentVector(frames [][]float64, onset, offset, featureSize float64) ([]float64, error) {
	lo := int(math.Floor(onset / featureSize))
	hi := int(math.Ceil(offset / featureSize))
	if lo < 0 {
		lo = 0
	}
	if hi > len(frames) {
		hi = len(frames)
	}
	if lo >= hi {
		return nil, fmt.Errorf("segment [%v, %v) is outside the %d available frames", onset, offset, len(frames))
	}

	dim := len(frames[0])
	out := make([]float64, dim)
	for _, frame := range frames[lo:hi] {
		for i, v := range frame {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(hi - lo)
	}
	return out, nil
}
