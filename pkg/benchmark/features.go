package benchmark

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFeatureFile reads a submitted feature matrix: one frame per line,
// whitespace separated floats, all frames of equal dimension.
func LoadFeatureFile(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var frames [][]float64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		frame := make([]float64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: bad value %q: %w", path, lineno, field, err)
			}
			frame[i] = v
		}
		if len(frames) > 0 && len(frame) != len(frames[0]) {
			return nil, fmt.Errorf("%s:%d: inconsistent feature dimension", path, lineno)
		}
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%s contains no frames", path)
	}
	return frames, nil
}
