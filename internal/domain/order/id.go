package order

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// IDPrefix starts every order identifier.
const IDPrefix = "ORD-"

// IDAllocator issues ORD-<n> identifiers, where n is the acceptance instant
// in Unix milliseconds. n is strictly increasing: when two orders arrive in
// the same millisecond, or the clock steps back, n is bumped past the last
// issued value and past every identifier already in the store.
type IDAllocator struct {
	mu   sync.Mutex
	last int64
}

// Next returns a fresh identifier for an order accepted at now, given the
// records already persisted.
func (a *IDAllocator) Next(now time.Time, existing []Record) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := now.UnixMilli()
	if a.last >= n {
		n = a.last + 1
	}
	if hi := highestID(existing); hi >= n {
		n = hi + 1
	}
	a.last = n
	return IDPrefix + strconv.FormatInt(n, 10)
}

// highestID returns the largest numeric ORD-<n> value among records. IDs in
// any other format are ignored.
func highestID(records []Record) int64 {
	var hi int64
	for i := range records {
		if n, ok := parseID(records[i].OrderID); ok && n > hi {
			hi = n
		}
	}
	return hi
}

// maxIDValue is the last millisecond of year 9999. Stored identifiers above
// it are ignored, and the allocator never reaches them.
var maxIDValue = time.Date(9999, time.December, 31, 23, 59, 59, 999_000_000, time.UTC).UnixMilli()

// parseID extracts n from ORD-<n>. Values above maxIDValue are ignored.
func parseID(id string) (int64, bool) {
	rest, ok := strings.CutPrefix(id, IDPrefix)
	if !ok || rest == "" || rest[0] < '0' || rest[0] > '9' {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n > maxIDValue {
		return 0, false
	}
	return n, true
}
