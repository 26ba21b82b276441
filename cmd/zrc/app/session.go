package app

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"zerospeech.io/zrc/pkg/client"
	"zerospeech.io/zrc/pkg/settings"
)

// SessionDetails is the stored login of the current user.
type SessionDetails struct {
	Username string `json:"username,omitempty"`
	URL      string `json:"url,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Client returns an authenticated client for the session's server.
func (s SessionDetails) Client() *client.Client {
	token, err := base64.StdEncoding.DecodeString(s.Token)
	if err != nil {
		return client.NewClient(s.URL, "")
	}
	return client.NewClient(s.URL, "Bearer "+string(token))
}

// BearerToken returns the decoded token of the session.
func (s SessionDetails) BearerToken() string {
	token, err := base64.StdEncoding.DecodeString(s.Token)
	if err != nil {
		return ""
	}
	return string(token)
}

// anonymousClient talks to the session's server when one is stored, falling
// back to the configured repository origin. Reads need no authentication.
func anonymousClient() *client.Client {
	if session, err := DefaultSessionManager.Get(); err == nil {
		return client.NewClient(session.URL, "")
	}
	return client.NewClient(settings.Get().RepoOrigin, "")
}

var DefaultSessionManager = SessionManager{
	Path: settings.Get().CredentialsFile(),
}

// SessionManager persists the login session on disk, one session at a time.
type SessionManager struct {
	Path string
}

func (m *SessionManager) Get() (SessionDetails, error) {
	content, err := os.ReadFile(m.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return SessionDetails{}, fmt.Errorf("no session stored, run `zrc user login`")
		}
		return SessionDetails{}, err
	}
	session := SessionDetails{}
	if err := json.Unmarshal(content, &session); err != nil {
		return SessionDetails{}, err
	}
	return session, nil
}

func (m *SessionManager) Set(session SessionDetails) error {
	if err := os.MkdirAll(filepath.Dir(m.Path), 0o755); err != nil {
		return err
	}
	content, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.Path, content, 0o600)
}

func (m *SessionManager) Clear() error {
	if err := os.Remove(m.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
