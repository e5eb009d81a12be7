// Package integrity produces and verifies tamper-evident seals.
//
// A seal is a SHA-256 digest over the canonical payload
//
//	fixture|model|selection|unix_seconds
//
// The payload layout is a stable contract: verification works on the stored
// payload as-is and never rebuilds or reorders it.
package integrity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"BetPulse/internal/domain/models"
)

// Separator joins payload fields.
const Separator = "|"

// Sealer creates seals. The zero value is not usable; use NewSealer.
type Sealer struct {
	now func() time.Time
}

// Option configures a Sealer.
type Option func(*Sealer)

// WithClock overrides the time source used when no timestamp is supplied.
func WithClock(now func() time.Time) Option {
	return func(s *Sealer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSealer(opts ...Option) *Sealer {
	s := &Sealer{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seal seals the fields at the current time.
func (s *Sealer) Seal(fixtureID, modelID, selection string) (models.IntegritySeal, error) {
	return s.SealAt(fixtureID, modelID, selection, s.now())
}

// SealAt seals the fields at ts, truncated to whole seconds.
func (s *Sealer) SealAt(fixtureID, modelID, selection string, ts time.Time) (models.IntegritySeal, error) {
	fields := [...]struct{ name, value string }{
		{"fixture", fixtureID},
		{"model", modelID},
		{"selection", selection},
	}
	for _, f := range fields {
		if f.value == "" {
			return models.IntegritySeal{}, fmt.Errorf("seal: %s is empty", f.name)
		}
		if strings.Contains(f.value, Separator) {
			return models.IntegritySeal{}, fmt.Errorf("seal: %s contains separator %q", f.name, Separator)
		}
	}
	unix := ts.Unix()
	payload := CanonicalPayload(fixtureID, modelID, selection, unix)
	return models.IntegritySeal{
		Digest:    Digest(payload),
		Payload:   payload,
		Timestamp: unix,
	}, nil
}

// CanonicalPayload renders the fields in sealed order.
func CanonicalPayload(fixtureID, modelID, selection string, unix int64) string {
	return strings.Join([]string{fixtureID, modelID, selection, strconv.FormatInt(unix, 10)}, Separator)
}

// Digest returns the lowercase hex SHA-256 of payload.
func Digest(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the digest of the stored payload and checks that the
// payload carries the seal's own timestamp.
func Verify(seal models.IntegritySeal) error {
	want := Digest(seal.Payload)
	if subtle.ConstantTimeCompare([]byte(want), []byte(seal.Digest)) != 1 {
		return &IntegrityMismatchError{Payload: seal.Payload, Reason: "digest does not match payload"}
	}
	idx := strings.LastIndex(seal.Payload, Separator)
	if idx < 0 || seal.Payload[idx+1:] != strconv.FormatInt(seal.Timestamp, 10) {
		return &IntegrityMismatchError{Payload: seal.Payload, Reason: "timestamp does not match payload"}
	}
	return nil
}

// VerifyFields verifies the seal and additionally checks that it was issued
// for exactly these fields.
func VerifyFields(seal models.IntegritySeal, fixtureID, modelID, selection string) error {
	if err := Verify(seal); err != nil {
		return err
	}
	if CanonicalPayload(fixtureID, modelID, selection, seal.Timestamp) != seal.Payload {
		return &IntegrityMismatchError{Payload: seal.Payload, Reason: "payload does not match sealed fields"}
	}
	return nil
}
