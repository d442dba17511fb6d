package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL is how long a settled checkout mutation stays replayable.
const DefaultTTL = 24 * time.Hour

// ReservationState describes the outcome of attempting to reserve an idempotency key.
type ReservationState int

const (
	// ReservationStateNew means the key is unclaimed and the caller may proceed.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted means a stored response exists and should be replayed.
	ReservationStateCompleted
	// ReservationStatePending means the first request holding this key is still in flight.
	ReservationStatePending
)

// Reservation is the result of reserving a key, carrying the stored record
// when one exists.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is the replayable outcome of a checkout mutation. A zero Status
// marks a pending reservation whose response has not been captured yet.
type Record struct {
	Fingerprint string
	Status      int
	Header      map[string][]string
	Body        []byte
	ExpiresAt   time.Time
}

// Completed reports whether the record holds a replayable response.
func (r Record) Completed() bool {
	return r.Status != 0
}

// Response is the captured HTTP response stored for future replays.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists idempotency reservations and their captured responses.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch is returned when an idempotency key is reused for a
// different request than the one that claimed it.
var ErrFingerprintMismatch = errors.New("idempotency: key reused for a different request")

// hashKey hides the raw scoped key from the record map; the scoped key embeds
// the caller identity.
func hashKey(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// volatileHeaders are recomputed by the HTTP stack on replay, not stored.
var volatileHeaders = map[string]struct{}{
	"Content-Length":      {},
	"Date":                {},
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailers":            {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

func snapshotHeaders(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}
	snapshot := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if _, volatile := volatileHeaders[canonical]; volatile {
			continue
		}
		copied := make([]string, len(values))
		copy(copied, values)
		snapshot[canonical] = copied
	}
	if len(snapshot) == 0 {
		return nil
	}
	return snapshot
}

func restoreHeaders(values map[string][]string) http.Header {
	header := make(http.Header, len(values))
	for name, vals := range values {
		copied := make([]string, len(vals))
		copy(copied, vals)
		header[name] = copied
	}
	return header
}
