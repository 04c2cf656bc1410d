// Package auth verifies signed requests on the /internal surface. The only
// callers of those endpoints are trusted schedulers, authenticated by a
// shared-secret HMAC over a canonical request string.
package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/comandas/api/internal/platform/httpx"
)

const (
	defaultSignatureHeader = "X-Signature"
	defaultTimestampHeader = "X-Signature-Timestamp"
	defaultNonceHeader     = "X-Signature-Nonce"

	defaultClockSkew = 5 * time.Minute
	defaultNonceTTL  = 5 * time.Minute
)

// Logger is the minimal printf-style logger the validator reports through.
type Logger interface {
	Printf(format string, args ...any)
}

// SecretProvider resolves shared secrets used for HMAC validation.
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SecretProviderFunc adapts a function to the SecretProvider interface.
type SecretProviderFunc func(context.Context, string) (string, error)

// GetSecret implements SecretProvider.
func (f SecretProviderFunc) GetSecret(ctx context.Context, name string) (string, error) {
	if f == nil {
		return "", errors.New("auth: secret provider not configured")
	}
	return f(ctx, name)
}

// NonceStore tracks unique nonces for replay prevention.
type NonceStore interface {
	// UseNonce records the nonce if it has not been seen before within the
	// scope. The boolean indicates whether the nonce was stored (true) or
	// already existed (false).
	UseNonce(ctx context.Context, scope, nonce string, expiry time.Time) (bool, error)
}

// InMemoryNonceStore offers an in-memory nonce registry suitable for a
// single-process deployment.
type InMemoryNonceStore struct {
	mu     sync.Mutex
	nonces map[string]time.Time
}

// NewInMemoryNonceStore constructs the store.
func NewInMemoryNonceStore() *InMemoryNonceStore {
	return &InMemoryNonceStore{nonces: make(map[string]time.Time)}
}

// UseNonce records the nonce until the provided expiry, rejecting replays until then.
func (s *InMemoryNonceStore) UseNonce(_ context.Context, scope, nonce string, expiry time.Time) (bool, error) {
	if scope == "" || nonce == "" {
		return false, errors.New("auth: scope and nonce are required")
	}

	key := scope + "::" + nonce

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, exp := range s.nonces {
		if exp.Before(now) {
			delete(s.nonces, k)
		}
	}

	if expiry.Before(now) {
		return false, errors.New("auth: nonce expiry is in the past")
	}

	if existing, ok := s.nonces[key]; ok && existing.After(now) {
		return false, nil
	}

	s.nonces[key] = expiry
	return true, nil
}

// HMACValidator verifies signed requests from trusted schedulers.
type HMACValidator struct {
	provider SecretProvider
	nonces   NonceStore

	logger Logger
	now    func() time.Time

	signatureHeader string
	timestampHeader string
	nonceHeader     string

	clockSkew time.Duration
	nonceTTL  time.Duration

	secretCache sync.Map
}

// HMACOption customises the validator.
type HMACOption func(*HMACValidator)

// NewHMACValidator builds a validator using the given secret provider and nonce store.
func NewHMACValidator(provider SecretProvider, nonces NonceStore, opts ...HMACOption) *HMACValidator {
	validator := &HMACValidator{
		provider:        provider,
		nonces:          nonces,
		logger:          log.Default(),
		now:             time.Now,
		signatureHeader: defaultSignatureHeader,
		timestampHeader: defaultTimestampHeader,
		nonceHeader:     defaultNonceHeader,
		clockSkew:       defaultClockSkew,
		nonceTTL:        defaultNonceTTL,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(validator)
		}
	}

	return validator
}

// WithHMACLogger overrides the validator logger.
func WithHMACLogger(logger Logger) HMACOption {
	return func(v *HMACValidator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithHMACClock injects a custom clock, primarily for tests.
func WithHMACClock(now func() time.Time) HMACOption {
	return func(v *HMACValidator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithHMACHeaders customises the header names used by the middleware.
func WithHMACHeaders(signature, timestamp, nonce string) HMACOption {
	return func(v *HMACValidator) {
		if signature != "" {
			v.signatureHeader = signature
		}
		if timestamp != "" {
			v.timestampHeader = timestamp
		}
		if nonce != "" {
			v.nonceHeader = nonce
		}
	}
}

// WithHMACClockSkew adjusts the accepted timestamp skew.
func WithHMACClockSkew(d time.Duration) HMACOption {
	return func(v *HMACValidator) {
		if d > 0 {
			v.clockSkew = d
		}
	}
}

// WithHMACNonceTTL customises the nonce retention duration.
func WithHMACNonceTTL(d time.Duration) HMACOption {
	return func(v *HMACValidator) {
		if d > 0 {
			v.nonceTTL = d
		}
	}
}

// RequireHMAC enforces the presence of a valid HMAC signature on the request.
func (v *HMACValidator) RequireHMAC(secretName string) func(http.Handler) http.Handler {
	scopedSecret := strings.TrimSpace(secretName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if scopedSecret == "" {
				respondAuthError(ctx, w, http.StatusServiceUnavailable, "verification_unavailable", "hmac secret not configured")
				return
			}

			secret, err := v.loadSecret(ctx, scopedSecret)
			if err != nil {
				if v.logger != nil {
					v.logger.Printf("auth: hmac secret lookup failed: %v", err)
				}
				respondAuthError(ctx, w, http.StatusServiceUnavailable, "verification_unavailable", "hmac secret unavailable")
				return
			}

			signatureValue := strings.TrimSpace(r.Header.Get(v.signatureHeader))
			if signatureValue == "" {
				respondAuthError(ctx, w, http.StatusUnauthorized, "signature_missing", "signature header missing")
				return
			}

			timestampValue := strings.TrimSpace(r.Header.Get(v.timestampHeader))
			if timestampValue == "" {
				respondAuthError(ctx, w, http.StatusUnauthorized, "timestamp_missing", "signature timestamp missing")
				return
			}

			timestamp, err := parseSignatureTimestamp(timestampValue)
			if err != nil {
				respondAuthError(ctx, w, http.StatusUnauthorized, "timestamp_invalid", "signature timestamp invalid")
				return
			}

			if skew := v.now().Sub(timestamp); skew > v.clockSkew || skew < -v.clockSkew {
				respondAuthError(ctx, w, http.StatusUnauthorized, "timestamp_skew", "signature timestamp outside allowed window")
				return
			}

			nonce := strings.TrimSpace(r.Header.Get(v.nonceHeader))
			if nonce == "" {
				respondAuthError(ctx, w, http.StatusUnauthorized, "nonce_missing", "signature nonce missing")
				return
			}

			bodyBytes, err := readAndRestoreBody(r)
			if err != nil {
				respondAuthError(ctx, w, http.StatusBadRequest, "invalid_body", "unable to read body for signature verification")
				return
			}

			canonical := buildCanonicalString(r, bodyBytes, timestampValue, nonce)
			signature, err := decodeSignature(signatureValue)
			if err != nil {
				respondAuthError(ctx, w, http.StatusUnauthorized, "signature_invalid", "signature encoding invalid")
				return
			}

			expected := computeHMAC(secret, canonical)
			if !hmac.Equal(signature, expected) {
				respondAuthError(ctx, w, http.StatusUnauthorized, "signature_mismatch", "signature verification failed")
				return
			}

			if v.nonces == nil {
				respondAuthError(ctx, w, http.StatusServiceUnavailable, "verification_unavailable", "nonce store unavailable")
				return
			}

			ttl := timestamp.Add(v.nonceTTL)
			if ttl.Before(v.now()) {
				ttl = v.now().Add(v.nonceTTL)
			}

			stored, err := v.nonces.UseNonce(ctx, scopedSecret, nonce, ttl)
			if err != nil {
				if v.logger != nil {
					v.logger.Printf("auth: nonce store error: %v", err)
				}
				respondAuthError(ctx, w, http.StatusServiceUnavailable, "verification_unavailable", "nonce storage error")
				return
			}

			if !stored {
				respondAuthError(ctx, w, http.StatusUnauthorized, "nonce_replay", "duplicate signature nonce")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (v *HMACValidator) loadSecret(ctx context.Context, name string) ([]byte, error) {
	if v == nil || v.provider == nil {
		return nil, errors.New("auth: secret provider not configured")
	}

	if cached, ok := v.secretCache.Load(name); ok {
		if secret, ok := cached.([]byte); ok && len(secret) > 0 {
			return secret, nil
		}
	}

	raw, err := v.provider.GetSecret(ctx, name)
	if err != nil {
		return nil, err
	}

	secret := []byte(raw)
	if len(secret) == 0 {
		return nil, errors.New("auth: secret is empty")
	}

	v.secretCache.Store(name, secret)
	return secret, nil
}

func respondAuthError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	buf, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.Body = io.NopCloser(bytes.NewReader(buf))
	return buf, nil
}

func decodeSignature(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("auth: empty signature")
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	return nil, errors.New("auth: signature must be base64 or hex encoded")
}

func parseSignatureTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("auth: timestamp empty")
	}

	value = strings.TrimSpace(value)
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}

	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("auth: unable to parse timestamp %q", value)
}

// The canonical string is METHOD, escaped path, timestamp, nonce and the
// SHA-256 of the body, newline separated.
func buildCanonicalString(r *http.Request, body []byte, timestamp, nonce string) []byte {
	method := strings.ToUpper(r.Method)
	path := r.URL.EscapedPath()
	if path == "" {
		path = "/"
	}

	hash := sha256.Sum256(body)
	canonical := strings.Join([]string{
		method,
		path,
		timestamp,
		nonce,
		hex.EncodeToString(hash[:]),
	}, "\n")
	return []byte(canonical)
}

func computeHMAC(secret []byte, message []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(message)
	return mac.Sum(nil)
}
