// Package hashing implements the `calculate_update` external utility spec
// §6 pins: turning a feed's entries into fingerprints and diffing them
// against the previously stored sequence.
package hashing

import (
	"hash/fnv"

	"github.com/jeffreyp/feedmonitor/internal/fetch"
)

// EntryHash computes a stable fingerprint for an entry. Link is the primary
// identity signal; title and content are folded in so an edited-in-place
// entry (same link, different body) still produces a new fingerprint.
func EntryHash(e fetch.Entry) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(e.Link))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(e.Title))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(e.Content))
	return fnvHex(h.Sum64())
}

func fnvHex(v uint64) string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hextable[v&0xf]
		v >>= 4
	}
	return string(buf)
}

// CalculateUpdate fingerprints entries (assumed newest-first, matching the
// Fetcher's wire-order) and reports which are new relative to prevHashes.
// newHashes is the full, newest-first fingerprint sequence for entries;
// updatedEntries holds only the ones not present in prevHashes, in the same
// newest-first order the fetcher returned them (spec §8 scenario 2).
func CalculateUpdate(prevHashes []string, entries []fetch.Entry) (newHashes []string, updatedEntries []fetch.Entry) {
	known := make(map[string]bool, len(prevHashes))
	for _, h := range prevHashes {
		known[h] = true
	}

	newHashes = make([]string, len(entries))
	for i, e := range entries {
		hash := EntryHash(e)
		newHashes[i] = hash
		if !known[hash] {
			updatedEntries = append(updatedEntries, e)
		}
	}
	return newHashes, updatedEntries
}

// Retain caps a hash sequence to the retention floor spec §6 names:
// max(2*entryCount, minRetention).
func Retain(hashes []string, entryCount, minRetention int) []string {
	limit := entryCount * 2
	if limit < minRetention {
		limit = minRetention
	}
	if len(hashes) <= limit {
		return hashes
	}
	return hashes[:limit]
}
