package benchmark

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestListChecker(t *testing.T) {
	tests := []struct {
		name      string
		given     []string
		expected  []string
		wantLevel ValidationLevel
		wantIn    string
	}{
		{
			name:      "exact match",
			given:     []string{"a", "b"},
			expected:  []string{"b", "a"},
			wantLevel: LevelOK,
		},
		{
			name:      "missing files",
			given:     []string{"a"},
			expected:  []string{"a", "b"},
			wantLevel: LevelError,
			wantIn:    "missing",
		},
		{
			name:      "extra files",
			given:     []string{"a", "b", "c"},
			expected:  []string{"a", "b"},
			wantLevel: LevelError,
			wantIn:    "more files",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ListChecker(tt.given, tt.expected)
			if len(got) != 1 {
				t.Fatalf("got %d responses, want 1", len(got))
			}
			if got[0].Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", got[0].Level, tt.wantLevel)
			}
			if tt.wantIn != "" && !strings.Contains(got[0].Message, tt.wantIn) {
				t.Errorf("message %q does not contain %q", got[0].Message, tt.wantIn)
			}
		})
	}
}

func TestFileListChecker(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"dev.txt", "test.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if got := FileListChecker(dir, []string{"dev", "test"}); HasErrors(got) {
		t.Errorf("unexpected errors: %v", got)
	}
	if got := FileListChecker(dir, []string{"dev", "test", "other"}); !HasErrors(got) {
		t.Error("expected missing-file error")
	}
}

func TestRunOptionsFilters(t *testing.T) {
	all := RunOptions{}
	if !all.WantSet("dev") || !all.WantTask("lexical") {
		t.Error("empty filters must accept everything")
	}

	narrowed := RunOptions{Sets: []string{"dev"}, Tasks: []string{"semantic"}}
	if !narrowed.WantSet("dev") || narrowed.WantSet("test") {
		t.Error("set filter broken")
	}
	if !narrowed.WantTask("semantic") || narrowed.WantTask("lexical") {
		t.Error("task filter broken")
	}

	wildcard := RunOptions{Sets: []string{"all"}}
	if !wildcard.WantSet("test") {
		t.Error("all must match any set")
	}
}
