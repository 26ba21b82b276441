// Package submission handles the on-disk shape of a challenge submission:
// the meta file, the score directory and the zip archive exchanged with the
// server.
package submission

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"zerospeech.io/zrc/pkg/client"
)

// ScoresDir returns the score output location for a submission directory.
func ScoresDir(dir string) string {
	return filepath.Join(dir, ScoresDirName)
}

// Zip archives the submission directory into archive, scores included.
func Zip(ctx context.Context, dir string, archive string) (digest.Digest, error) {
	if _, err := os.Stat(archive); err == nil {
		return "", fmt.Errorf("archive %s already exists", archive)
	}
	if _, err := LoadMeta(dir); err != nil {
		return "", fmt.Errorf("not a submission directory: %w", err)
	}
	return client.Zip(ctx, dir, archive)
}

// Unzip extracts a submission archive into dir.
func Unzip(ctx context.Context, archive string, dir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()
	return client.Unzip(ctx, dir, f)
}
