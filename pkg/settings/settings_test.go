package settings

import (
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	s := Load()
	if s.AppDir == "" {
		t.Fatal("AppDir is empty")
	}
	if s.RepoOrigin != "https://download.zerospeech.com" {
		t.Errorf("RepoOrigin = %q", s.RepoOrigin)
	}
	if got := s.DatasetsDir(); got != filepath.Join(s.AppDir, "datasets") {
		t.Errorf("DatasetsDir() = %q", got)
	}
	if got := s.IndexCache(); got != filepath.Join(s.AppDir, "repo.json") {
		t.Errorf("IndexCache() = %q", got)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ZRC_APP_DIR", "/srv/zr")
	t.Setenv("ZRC_REPO_ORIGIN", "https://mirror.example.com")

	s := Load()
	if s.AppDir != "/srv/zr" {
		t.Errorf("AppDir = %q, want /srv/zr", s.AppDir)
	}
	if s.RepoOrigin != "https://mirror.example.com" {
		t.Errorf("RepoOrigin = %q", s.RepoOrigin)
	}
	if got := s.SamplesDir(); got != "/srv/zr/samples" {
		t.Errorf("SamplesDir() = %q", got)
	}
}
