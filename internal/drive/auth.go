package drive

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ReadOnlyScope is the only scope the tool ever requests.
const ReadOnlyScope = "https://www.googleapis.com/auth/drive.readonly"

// tokenFile mirrors the stored token JSON. Both Go-style oauth2 token
// files ("access_token") and files written by earlier releases of the
// tool ("token", with embedded client credentials) are accepted.
type tokenFile struct {
	AccessToken  string `json:"access_token,omitempty"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	TokenURI     string `json:"token_uri,omitempty"`
	Expiry       string `json:"expiry,omitempty"`
}

// TokenSource builds an oauth2.TokenSource from the token file at path.
// Refreshed tokens are written back so the next run starts warm. There
// is no interactive flow here: a missing or unusable token yields an
// *AuthError, and the caller tells the user how to authenticate.
func TokenSource(ctx context.Context, path string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &AuthError{Path: path, Err: err}
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, &AuthError{Path: path, Err: err}
	}

	access := tf.AccessToken
	if access == "" {
		access = tf.Token
	}
	if access == "" && tf.RefreshToken == "" {
		return nil, &AuthError{Path: path, Err: errors.New("token file holds no credentials")}
	}

	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: tf.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       parseExpiry(tf.Expiry),
	}

	// Without client credentials the token cannot be refreshed; use it
	// as-is and let an expiry surface as an auth failure.
	if tf.ClientID == "" || tf.RefreshToken == "" {
		return oauth2.StaticTokenSource(tok), nil
	}

	endpoint := google.Endpoint
	if tf.TokenURI != "" {
		endpoint = oauth2.Endpoint{TokenURL: tf.TokenURI}
	}
	conf := &oauth2.Config{
		ClientID:     tf.ClientID,
		ClientSecret: tf.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{ReadOnlyScope},
	}

	return &savingTokenSource{
		src:  oauth2.ReuseTokenSource(tok, conf.TokenSource(ctx, tok)),
		path: path,
		file: tf,
		last: tok.AccessToken,
	}, nil
}

// savingTokenSource persists refreshed access tokens back to the token
// file, preserving the stored client credentials.
type savingTokenSource struct {
	src  oauth2.TokenSource
	path string
	file tokenFile

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, &AuthError{Path: s.path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		s.persist(tok)
	}
	return tok, nil
}

func (s *savingTokenSource) persist(tok *oauth2.Token) {
	out := s.file
	out.Token = tok.AccessToken
	out.AccessToken = ""
	if tok.RefreshToken != "" {
		out.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		out.Expiry = tok.Expiry.UTC().Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return
	}
	// Best effort: a failed write just means a refresh on the next run.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
	}
}

// parseExpiry handles the timestamp formats seen in token files.
func parseExpiry(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// TokenExists reports whether a token file is present on disk.
func TokenExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(filepath.Clean(path))
	return err == nil && !info.IsDir()
}
