package backend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"simplesns/internal/cache"
	"simplesns/internal/featureflags"
	"simplesns/internal/middleware"
	"simplesns/internal/models"
	"simplesns/internal/objectstore"
	"simplesns/internal/observability"
	"simplesns/internal/pagination"
	"simplesns/internal/repository"

	"github.com/google/uuid"
)

const (
	DefaultURLTTL       = 300 * time.Second
	DefaultStoreTimeout = 10 * time.Second
)

// Service implements Backend over one provider's stores.
type Service struct {
	provider string
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	objects  objectstore.Store

	profileCache *cache.ProfileCache
	flags        *featureflags.Manager
	logger       *slog.Logger

	urlTTL  time.Duration
	timeout time.Duration
	cdnURL  string
	now     func() time.Time
	newID   func() string
	closers []func() error
}

// Option configures a Service.
type Option func(*Service)

// WithObjectStore sets the image store. Without one, uploads and posts that
// reference images fail with a configuration error.
func WithObjectStore(store objectstore.Store) Option {
	return func(s *Service) { s.objects = store }
}

func WithProfileCache(c *cache.ProfileCache) Option {
	return func(s *Service) { s.profileCache = c }
}

func WithFeatureFlags(m *featureflags.Manager) Option {
	return func(s *Service) { s.flags = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithURLTTL sets the lifetime of signed upload and read URLs.
func WithURLTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.urlTTL = ttl
		}
	}
}

// WithStoreTimeout bounds every individual store or object-store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithCDNURL makes read URLs plain <cdn>/<key> links instead of signed URLs.
func WithCDNURL(base string) Option {
	return func(s *Service) { s.cdnURL = base }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func withCloser(fn func() error) Option {
	return func(s *Service) { s.closers = append(s.closers, fn) }
}

// NewService composes a provider's repositories into a Backend.
func NewService(provider string, posts repository.PostRepository, profiles repository.ProfileRepository, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		posts:    posts,
		profiles: profiles,
		flags:    featureflags.NewManager(""),
		urlTTL:   DefaultURLTTL,
		timeout:  DefaultStoreTimeout,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Provider() string { return s.provider }

// ObjectStore returns the configured image store, or nil.
func (s *Service) ObjectStore() objectstore.Store { return s.objects }

// Ping checks that the document store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	pinger, ok := s.posts.(repository.Pinger)
	if !ok {
		return nil
	}
	if err := s.call(ctx, pinger.Ping); err != nil {
		return models.NewUpstreamError("ping", err)
	}
	return nil
}

// Close releases the clients the factory opened.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return middleware.Logger
}

// observe opens a span and returns a func that records metrics for the
// operation and ends the span. Call it deferred with the named error result.
func (s *Service) observe(ctx context.Context, operation string) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := observability.GetTraceLayer().TraceBackendCall(ctx, s.provider, operation)
	return ctx, func(errp *error) {
		code := ""
		if errp != nil && *errp != nil {
			code = models.ErrorCode(*errp)
			observability.RecordErrorInContext(ctx, *errp)
		}
		observability.ObserveBackendCall(s.provider, operation, code, start)
		span.End()
	}
}

// call runs fn under the per-call store timeout.
func (s *Service) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}

func upstream(operation string, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewUpstreamError(operation, err)
}

// decodeCursor turns a client token into a cursor. Unusable tokens restart
// pagination from the first page.
func (s *Service) decodeCursor(ctx context.Context, token string) *pagination.Cursor {
	if token == "" {
		return nil
	}
	c, err := pagination.Parse(token, s.provider)
	if err != nil {
		s.log().WarnContext(ctx, "ignoring unusable pagination token",
			slog.String("provider", s.provider),
			slog.Int("token_length", len(token)),
		)
		return nil
	}
	return c
}

func (s *Service) encodeCursor(c *pagination.Cursor) (string, error) {
	if c == nil {
		return "", nil
	}
	c.Provider = s.provider
	c.Version = pagination.Version
	return pagination.Encode(c)
}

// objectURL derives a read URL for key. The empty string means the key is
// skipped.
func (s *Service) objectURL(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	if s.cdnURL != "" {
		return s.cdnURL + "/" + key
	}
	if s.objects == nil {
		return ""
	}
	var url string
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		url, err = s.objects.SignGet(ctx, key, s.urlTTL)
		return err
	})
	if err != nil {
		s.log().WarnContext(ctx, "failed to sign image url",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return url
}

func (s *Service) attachImageURLs(ctx context.Context, post *models.Post) {
	urls := make([]string, 0, len(post.ImageKeys))
	for _, key := range post.ImageKeys {
		if u := s.objectURL(ctx, key); u != "" {
			urls = append(urls, u)
		}
	}
	post.ImageURLs = urls
}

// deleteImages removes keys one by one. Failures are logged and counted,
// never returned.
func (s *Service) deleteImages(ctx context.Context, postID string, keys []string) {
	if len(keys) == 0 {
		return
	}
	if s.objects == nil {
		s.log().WarnContext(ctx, "no object store configured, leaving images in place",
			slog.String("post_id", postID),
			slog.Int("images", len(keys)),
		)
		return
	}
	for _, key := range keys {
		err := s.call(ctx, func(ctx context.Context) error {
			return s.objects.Delete(ctx, key)
		})
		if err != nil {
			observability.ImageDeleteFailures.WithLabelValues(s.objects.Name()).Inc()
			s.log().WarnContext(ctx, "failed to delete image",
				slog.String("post_id", postID),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}
