package oauthfilter

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// SecretReader supplies the HMAC secret used to bind session cookies and the
// OAuth client secret used at the token endpoint. Implementations may rotate
// the underlying material; callers read a snapshot at each use and never
// cache across requests.
type SecretReader interface {
	HmacSecret() string
	ClientSecret() string
}

// StaticSecrets is a SecretReader over fixed values.
type StaticSecrets struct {
	Hmac   string
	Client string
}

func (s StaticSecrets) HmacSecret() string   { return s.Hmac }
func (s StaticSecrets) ClientSecret() string { return s.Client }

// FileSecrets reads the two secrets from files and picks up rotations by
// re-reading whenever a file's modification time changes. Reads between
// rotations are served from the cached value.
type FileSecrets struct {
	HmacPath   string
	ClientPath string

	mu     sync.Mutex
	hmac   fileSecret
	client fileSecret
}

type fileSecret struct {
	value   string
	modTime time.Time
}

// NewFileSecrets loads both secret files eagerly so a missing or unreadable
// file fails construction rather than the first request.
func NewFileSecrets(hmacPath, clientPath string) (*FileSecrets, error) {
	s := &FileSecrets{HmacPath: hmacPath, ClientPath: clientPath}
	if _, err := s.read(hmacPath, &s.hmac); err != nil {
		return nil, fmt.Errorf("failed to load hmac secret: %w", err)
	}
	if _, err := s.read(clientPath, &s.client); err != nil {
		return nil, fmt.Errorf("failed to load client secret: %w", err)
	}
	return s, nil
}

// read refreshes the cached secret when the backing file changed. On stat or
// read errors the previously loaded value is kept, so a rotation glitch never
// invalidates in-flight sessions.
func (s *FileSecrets) read(path string, cached *fileSecret) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if cached.value != "" {
			return cached.value, nil
		}
		return "", err
	}
	if info.ModTime().Equal(cached.modTime) && cached.value != "" {
		return cached.value, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if cached.value != "" {
			return cached.value, nil
		}
		return "", err
	}
	cached.value = strings.TrimSpace(string(raw))
	cached.modTime = info.ModTime()
	return cached.value, nil
}

func (s *FileSecrets) HmacSecret() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, _ := s.read(s.HmacPath, &s.hmac)
	return value
}

func (s *FileSecrets) ClientSecret() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, _ := s.read(s.ClientPath, &s.client)
	return value
}
