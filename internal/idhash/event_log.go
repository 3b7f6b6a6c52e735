// Package idhash computes deterministic identifiers for ledger data.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(seq|kind|pool|holder|amount|fee|block|timestamp|detail)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(ev *domain.Event) string {
	hash := sha256.Sum256([]byte(canonical(ev)))
	return hex.EncodeToString(hash[:])
}

// ComputeLogDigest chains the events in order into one hash. Two runs that
// emit the same events in the same order have the same digest; an empty log
// hashes the empty string.
func ComputeLogDigest(evs []*domain.Event) string {
	h := sha256.New()
	for _, ev := range evs {
		h.Write([]byte(canonical(ev)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func canonical(ev *domain.Event) string {
	return fmt.Sprintf("%d|%s|%d|%s|%s|%s|%d|%d|%s",
		ev.Seq,
		ev.Kind,
		ev.PoolID,
		ev.Holder.Hex(),
		amount.Or0(ev.Amount).String(),
		amount.Or0(ev.Fee).String(),
		ev.Block,
		ev.Timestamp,
		ev.Detail,
	)
}
