package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medichannel/channeling/internal/platform/auth"
)

const (
	IdempotencyHeader     = "Idempotency-Key"
	DefaultIdempotencyTTL = 24 * time.Hour
	// IdempotencyLockTTL bounds how long an in-flight key stays reserved if
	// its holder dies before releasing it.
	IdempotencyLockTTL = time.Minute
)

// CachedResponse is a write response kept for replay under an idempotency key.
type CachedResponse struct {
	Method     string      `json:"method"`
	Path       string      `json:"path"`
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

// IdempotencyStore persists cached responses. Implementations must be safe
// for concurrent use.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool, error)
	Set(ctx context.Context, key string, resp *CachedResponse) error
	// Reserve claims key for one in-flight request. It returns false while
	// another holder has it.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisIdempotencyStore keeps responses in Redis so replays work across
// server instances.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &RedisIdempotencyStore{client: client, ttl: ttl, prefix: "idempotency:"}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*CachedResponse, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var resp CachedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false, fmt.Errorf("decode cached response: %w", err)
	}
	return &resp, true, nil
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key string, resp *CachedResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode cached response: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+"lock:"+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+"lock:"+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping reports whether Redis is reachable, for the health endpoint.
func (s *RedisIdempotencyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// MemoryIdempotencyStore is used when no Redis URL is configured.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*CachedResponse
	pending map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &MemoryIdempotencyStore{
		entries: make(map[string]*CachedResponse),
		pending: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) (*CachedResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if s.now().Sub(entry.CreatedAt) > s.ttl {
		delete(s.entries, key)
		return nil, false, nil
	}
	cp := *entry
	cp.Headers = entry.Headers.Clone()
	cp.Body = bytes.Clone(entry.Body)
	return &cp, true, nil
}

func (s *MemoryIdempotencyStore) Set(_ context.Context, key string, resp *CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *resp
	cp.Headers = resp.Headers.Clone()
	cp.Body = bytes.Clone(resp.Body)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	s.entries[key] = &cp
	return nil
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if expires, held := s.pending[key]; held && now.Before(expires) {
		return false, nil
	}
	s.pending[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
	return nil
}

// idempotencyScope keys stored responses by tenant and caller, so one user's
// key never replays another user's response.
func idempotencyScope(c echo.Context, idempKey string) string {
	tenant, _ := c.Get("tenant_id").(string)
	user := auth.UserIDFromContext(c.Request().Context())
	return tenant + ":" + user + ":" + idempKey
}

// Idempotency replays the stored response when a POST is retried with the
// same Idempotency-Key, so a client retrying a booking after a timeout does
// not create a second appointment. Keys are scoped per tenant and caller.
// A key is reserved while its request runs; a concurrent duplicate gets 409.
// Only successful responses are stored.
func Idempotency(logger zerolog.Logger, store IdempotencyStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodPost {
				return next(c)
			}
			idempKey := req.Header.Get(IdempotencyHeader)
			if idempKey == "" {
				return next(c)
			}
			if len(idempKey) > 255 {
				return echo.NewHTTPError(http.StatusBadRequest, "idempotency key too long")
			}

			ctx := req.Context()
			key := idempotencyScope(c, idempKey)
			path := req.URL.Path

			if cached, ok := lookupCached(ctx, logger, store, key); ok {
				return replay(c, cached, path)
			}

			reserved, err := store.Reserve(ctx, key, IdempotencyLockTTL)
			switch {
			case err != nil:
				// a store outage degrades to non-idempotent handling
				logger.Warn().Err(err).Str("key", idempKey).Msg("idempotency reserve failed")
			case !reserved:
				return echo.NewHTTPError(http.StatusConflict,
					"a request with this idempotency key is still in progress")
			default:
				defer func() {
					if relErr := store.Release(context.WithoutCancel(ctx), key); relErr != nil {
						logger.Warn().Err(relErr).Str("key", idempKey).Msg("idempotency release failed")
					}
				}()
				// the previous holder may have finished between lookup and reserve
				if cached, ok := lookupCached(ctx, logger, store, key); ok {
					return replay(c, cached, path)
				}
			}

			origWriter := c.Response().Writer
			rec := &responseRecorder{ResponseWriter: origWriter, body: &bytes.Buffer{}, statusCode: http.StatusOK, headers: make(http.Header)}
			c.Response().Writer = rec
			err = next(c)
			c.Response().Writer = origWriter
			if err != nil {
				return err
			}

			if rec.statusCode < 300 {
				entry := &CachedResponse{
					Method:     req.Method,
					Path:       path,
					StatusCode: rec.statusCode,
					Headers:    rec.headers.Clone(),
					Body:       rec.body.Bytes(),
					CreatedAt:  time.Now().UTC(),
				}
				if setErr := store.Set(context.WithoutCancel(ctx), key, entry); setErr != nil {
					logger.Warn().Err(setErr).Str("key", idempKey).Msg("idempotency store failed")
				}
			}

			for k, vals := range rec.headers {
				for _, v := range vals {
					origWriter.Header().Add(k, v)
				}
			}
			origWriter.WriteHeader(rec.statusCode)
			_, err = origWriter.Write(rec.body.Bytes())
			return err
		}
	}
}

func lookupCached(ctx context.Context, logger zerolog.Logger, store IdempotencyStore, key string) (*CachedResponse, bool) {
	cached, ok, err := store.Get(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Msg("idempotency lookup failed")
		return nil, false
	}
	return cached, ok
}

func replay(c echo.Context, cached *CachedResponse, path string) error {
	if cached.Method != c.Request().Method || cached.Path != path {
		return echo.NewHTTPError(http.StatusUnprocessableEntity,
			"idempotency key was already used for a different operation")
	}
	resp := c.Response()
	for k, vals := range cached.Headers {
		for _, v := range vals {
			resp.Header().Add(k, v)
		}
	}
	resp.Header().Set("X-Idempotency-Replayed", "true")
	resp.WriteHeader(cached.StatusCode)
	_, err := resp.Write(cached.Body)
	return err
}

// responseRecorder buffers a handler's response so it can be stored before
// it is sent.
type responseRecorder struct {
	http.ResponseWriter
	body       *bytes.Buffer
	statusCode int
	headers    http.Header
	wroteHead  bool
}

func (r *responseRecorder) Header() http.Header {
	return r.headers
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.wroteHead {
		return
	}
	r.statusCode = code
	r.wroteHead = true
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHead {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(b)
}
