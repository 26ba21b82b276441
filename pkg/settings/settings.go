// Package settings holds the environment driven configuration of the zrc CLI.
// All knobs are read from ZRC_* variables with sane defaults, mirroring the
// behaviour users know from the hosted toolchain.
package settings

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

const EnvPrefix = "zrc"

type Settings struct {
	// AppDir is where datasets, checkpoints and samples are installed.
	AppDir string
	// TmpDir hosts partial downloads before they are committed.
	TmpDir string
	// RepoOrigin is the base URL of the repository server.
	RepoOrigin string
	AdminEmail string
}

func defaultAppDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "zr-data"
	}
	return filepath.Join(home, "zr-data")
}

func Load() *Settings {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("app_dir", defaultAppDir())
	v.SetDefault("tmp_dir", os.TempDir())
	v.SetDefault("repo_origin", "https://download.zerospeech.com")
	v.SetDefault("admin_email", "contact@zerospeech.com")

	return &Settings{
		AppDir:     v.GetString("app_dir"),
		TmpDir:     v.GetString("tmp_dir"),
		RepoOrigin: v.GetString("repo_origin"),
		AdminEmail: v.GetString("admin_email"),
	}
}

var (
	global     *Settings
	globalOnce sync.Once
)

// Get returns the process wide settings, loaded once.
func Get() *Settings {
	globalOnce.Do(func() {
		global = Load()
	})
	return global
}

func (s *Settings) DatasetsDir() string    { return filepath.Join(s.AppDir, "datasets") }
func (s *Settings) CheckpointsDir() string { return filepath.Join(s.AppDir, "checkpoints") }
func (s *Settings) SamplesDir() string     { return filepath.Join(s.AppDir, "samples") }

// IndexCache is the local copy of the repository index.
func (s *Settings) IndexCache() string { return filepath.Join(s.AppDir, "repo.json") }

// CredentialsFile stores the login session.
func (s *Settings) CredentialsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(s.AppDir, "credentials.json")
	}
	return filepath.Join(home, ".zrc", "credentials.json")
}

func (s *Settings) MkTmpDir() (string, error) {
	return os.MkdirTemp(s.TmpDir, "zrc")
}
