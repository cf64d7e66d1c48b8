package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix leaves room for
// changing the algorithm later without colliding with old journals.
const (
	DomainEvent = "statecore/event/v1"
	DomainState = "statecore/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventHash is the content hash of an event: its kind plus payload.
func EventHash(kind string, payload IRObject) (string, error) {
	if payload == nil {
		payload = IRObject{}
	}
	canonical, err := MarshalCanonical(IRObject{
		"kind":    IRString(kind),
		"payload": payload,
	})
	if err != nil {
		return "", fmt.Errorf("EventHash: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// StateHash is the content hash of a state snapshot.
func StateHash(state IRObject) (string, error) {
	if state == nil {
		state = IRObject{}
	}
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("StateHash: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// Fingerprint hashes any value, nulls included, for in-process
// change detection. It is not stable across encodings and must not be
// persisted; use EventHash or StateHash for that.
func Fingerprint(v IRValue) string {
	data, err := MarshalIRValue(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
