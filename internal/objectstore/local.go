package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// objectClaims binds a local URL token to one key, method and content type.
type objectClaims struct {
	Key         string `json:"key"`
	Method      string `json:"m"`
	ContentType string `json:"ct,omitempty"`
	jwt.RegisteredClaims
}

// LocalStore keeps objects on disk and serves them through this API's
// /objects routes, authorized by short-lived HS256 tokens.
type LocalStore struct {
	dir     string
	baseURL string
	secret  []byte
	now     func() time.Time
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithClock overrides the time source used for token issue and expiry.
func WithClock(now func() time.Time) LocalOption {
	return func(s *LocalStore) { s.now = now }
}

// NewLocalStore creates a disk-backed store rooted at dir.
func NewLocalStore(dir, baseURL, secret string, opts ...LocalOption) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("local storage directory is required")
	}
	if secret == "" {
		return nil, errors.New("local signing secret is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	s := &LocalStore{
		dir:     abs,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *LocalStore) Name() string { return "local" }

func (s *LocalStore) SignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return s.sign(key, "PUT", contentType, ttl)
}

func (s *LocalStore) SignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return s.sign(key, "GET", "", ttl)
}

func (s *LocalStore) sign(key, method, contentType string, ttl time.Duration) (string, error) {
	if _, err := s.path(key); err != nil {
		return "", err
	}
	now := s.now()
	claims := objectClaims{
		Key:         key,
		Method:      method,
		ContentType: contentType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign object token: %w", err)
	}
	return s.baseURL + "/objects/" + escapeKey(key) + "?token=" + url.QueryEscape(token), nil
}

// Verify checks that token authorizes method on key. For PUT the request
// content type must equal the signed one.
func (s *LocalStore) Verify(token, method, key, contentType string) error {
	var claims objectClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidObjectToken, err)
	}
	if claims.Key != key || claims.Method != method {
		return ErrInvalidObjectToken
	}
	if method == "PUT" && !strings.EqualFold(claims.ContentType, contentType) {
		return ErrInvalidObjectToken
	}
	return nil
}

// MaxLocalObjectSize caps a single uploaded object.
const MaxLocalObjectSize = 16 << 20

// ErrObjectTooLarge is returned by Write for bodies over MaxLocalObjectSize.
var ErrObjectTooLarge = errors.New("object too large")

// Write stores r under key, replacing any previous object.
func (s *LocalStore) Write(key string, r io.Reader) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return err
	}
	n, err := io.Copy(tmp, io.LimitReader(r, MaxLocalObjectSize+1))
	if err == nil && n > MaxLocalObjectSize {
		err = ErrObjectTooLarge
	}
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// Open returns the object stored under key.
func (s *LocalStore) Open(key string) (*os.File, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return f, err
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// path maps key to a file below the storage root, refusing traversal.
func (s *LocalStore) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") || path.Clean(key) != key || strings.HasPrefix(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
