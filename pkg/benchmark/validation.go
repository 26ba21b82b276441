package benchmark

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type ValidationLevel string

const (
	LevelOK      ValidationLevel = "ok"
	LevelWarning ValidationLevel = "warning"
	LevelError   ValidationLevel = "error"
)

type ValidationResponse struct {
	Level   ValidationLevel
	Message string
	// Path is the file or directory the finding refers to, if any.
	Path string
}

func OK(format string, args ...any) ValidationResponse {
	return ValidationResponse{Level: LevelOK, Message: fmt.Sprintf(format, args...)}
}

func Warning(format string, args ...any) ValidationResponse {
	return ValidationResponse{Level: LevelWarning, Message: fmt.Sprintf(format, args...)}
}

func Error(path string, format string, args ...any) ValidationResponse {
	return ValidationResponse{Level: LevelError, Message: fmt.Sprintf(format, args...), Path: path}
}

func HasErrors(responses []ValidationResponse) bool {
	for _, r := range responses {
		if r.Level == LevelError {
			return true
		}
	}
	return false
}

// ShowErrors prints non-ok findings, most severe first.
func ShowErrors(w io.Writer, responses []ValidationResponse) {
	for _, r := range responses {
		if r.Level == LevelOK {
			continue
		}
		if r.Path != "" {
			fmt.Fprintf(w, "%s: %s (%s)\n", r.Level, r.Message, r.Path)
		} else {
			fmt.Fprintf(w, "%s: %s\n", r.Level, r.Message)
		}
	}
}

// ListChecker compares a found name set against an expected one.
func ListChecker(given, expected []string) []ValidationResponse {
	givenset := map[string]bool{}
	for _, g := range given {
		givenset[g] = true
	}
	expectedset := map[string]bool{}
	for _, e := range expected {
		expectedset[e] = true
	}

	var missing, extra []string
	for e := range expectedset {
		if !givenset[e] {
			missing = append(missing, e)
		}
	}
	for g := range givenset {
		if !expectedset[g] {
			extra = append(extra, g)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	switch {
	case len(extra) > 0:
		return []ValidationResponse{Error("", "more files than expected: %s", strings.Join(extra, ", "))}
	case len(missing) > 0:
		return []ValidationResponse{Error("", "missing files: %s", strings.Join(missing, ", "))}
	default:
		return []ValidationResponse{OK("expected files found")}
	}
}

// FileListChecker checks that dir contains exactly the expected file stems.
func FileListChecker(dir string, expected []string) []ValidationResponse {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []ValidationResponse{Error(dir, "cannot list directory: %v", err)}
	}
	stems := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		stems = append(stems, strings.TrimSuffix(name, filepath.Ext(name)))
	}
	return ListChecker(stems, expected)
}

// FileExistsChecker checks a single required file.
func FileExistsChecker(path string) []ValidationResponse {
	fi, err := os.Stat(path)
	if err != nil {
		return []ValidationResponse{Error(path, "required file is missing")}
	}
	if fi.IsDir() {
		return []ValidationResponse{Error(path, "expected a file, found a directory")}
	}
	return []ValidationResponse{OK("%s found", filepath.Base(path))}
}
