// Package legacy moves order logs between customer-orders.json files, as
// written by earlier order servers, and an order Store.
package legacy

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/moby/sys/atomicwriter"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/orderlog/internal/domain/order"
)

const (
	snapshotPerm  = 0o644
	snapshotIdent = 2
	bloomFPR      = 0.001
)

// IsGzip reports whether path names a gzip-compressed log.
func IsGzip(path string) bool {
	return strings.HasSuffix(path, ".gz")
}

// ReadFile parses one order log. Files ending in .gz are decompressed.
func ReadFile(ctx context.Context, path string) ([]order.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if IsGzip(path) {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := order.DecodeRecords(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return records, nil
}

// ReadFiles parses logs concurrently. The result keeps the order of paths.
func ReadFiles(ctx context.Context, paths []string) ([][]order.Record, error) {
	batches := make([][]order.Record, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			records, err := ReadFile(ctx, path)
			if err != nil {
				return err
			}
			batches[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

// MergeStats counts what Merge did.
type MergeStats struct {
	// Imported counts appended records, Renamed included.
	Imported int
	// Duplicates counts records identical to one already merged.
	Duplicates int
	// Renamed counts records whose orderId was taken by a different order
	// and that were appended under a fresh identifier.
	Renamed int
}

// Merge appends every batch record to a copy of existing unless the same
// order is already there, which makes re-importing a log a no-op. Legacy
// identifiers and timestamps are kept. Earlier servers could give two orders
// taken in the same millisecond the same orderId; such a record is appended
// under a fresh identifier instead of being dropped, and on a later import
// it is recognized by its content.
func Merge(existing []order.Record, batches ...[]order.Record) ([]order.Record, MergeStats) {
	incoming := 0
	for _, b := range batches {
		incoming += len(b)
	}

	merged := make([]order.Record, len(existing), len(existing)+incoming)
	copy(merged, existing)

	ids := newIDSet(len(existing) + incoming)
	for i := range existing {
		ids.add(existing[i].OrderID, i)
	}

	var (
		stats MergeStats
		alloc order.IDAllocator
		// contents holds contentKey of every merged record. It is built on
		// the first ID collision only.
		contents map[string]struct{}
	)
	for _, b := range batches {
		for _, rec := range b {
			if i, ok := ids.lookup(rec.OrderID); ok {
				if merged[i].Equal(rec) {
					stats.Duplicates++
					continue
				}
				if contents == nil {
					contents = make(map[string]struct{}, cap(merged))
					for j := range merged {
						contents[contentKey(merged[j])] = struct{}{}
					}
				}
				if _, seen := contents[contentKey(rec)]; seen {
					stats.Duplicates++
					continue
				}
				rec.OrderID = alloc.Next(rec.Timestamp, merged)
				stats.Renamed++
			}
			ids.add(rec.OrderID, len(merged))
			merged = append(merged, rec)
			if contents != nil {
				contents[contentKey(rec)] = struct{}{}
			}
			stats.Imported++
		}
	}
	return merged, stats
}

// contentKey identifies an order by everything but its orderId.
func contentKey(rec order.Record) string {
	rec.OrderID = ""
	return string(order.EncodeRecords([]order.Record{rec}, 0))
}

// idSet maps order IDs to their position in the merged log. A bloom filter
// fronts the map, so the common case of a new ID is answered without a map
// lookup.
type idSet struct {
	filter *bloom.BloomFilter
	exact  map[string]int
}

func newIDSet(capacity int) *idSet {
	return &idSet{
		filter: bloom.NewWithEstimates(uint(max(capacity, 1)), bloomFPR),
		exact:  make(map[string]int, capacity),
	}
}

// add records the position of id. The first position of an ID wins.
func (s *idSet) add(id string, pos int) {
	if _, ok := s.exact[id]; ok {
		return
	}
	s.filter.AddString(id)
	s.exact[id] = pos
}

func (s *idSet) lookup(id string) (int, bool) {
	if !s.filter.TestString(id) {
		return 0, false
	}
	pos, ok := s.exact[id]
	return pos, ok
}

// Import reads paths and merges their records into store.
func Import(ctx context.Context, store order.Store, paths []string) (MergeStats, error) {
	batches, err := ReadFiles(ctx, paths)
	if err != nil {
		return MergeStats{}, errors.Wrap(err, "read legacy logs")
	}
	if err := store.EnsureInitialized(ctx); err != nil {
		return MergeStats{}, errors.Wrap(err, "initialize store")
	}
	existing, err := store.LoadAll(ctx)
	if err != nil {
		return MergeStats{}, errors.Wrap(err, "load store")
	}

	merged, stats := Merge(existing, batches...)
	if stats.Imported == 0 {
		return stats, nil
	}
	if err := store.ReplaceAll(ctx, merged); err != nil {
		return MergeStats{}, errors.Wrap(err, "write store")
	}
	return stats, nil
}

// WriteSnapshot writes records to path in the legacy pretty-printed format,
// gzip-compressed when path ends in .gz. The file is replaced atomically.
func WriteSnapshot(path string, records []order.Record) error {
	data := order.EncodeRecords(records, snapshotIdent)
	data = append(data, '\n')

	if IsGzip(path) {
		var buf bytes.Buffer
		gz := pgzip.NewWriter(&buf)
		if _, err := gz.Write(data); err != nil {
			return errors.Wrap(err, "compress snapshot")
		}
		if err := gz.Close(); err != nil {
			return errors.Wrap(err, "compress snapshot")
		}
		data = buf.Bytes()
	}

	if err := atomicwriter.WriteFile(path, data, snapshotPerm); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// Export writes the full content of store to path.
func Export(ctx context.Context, store order.Store, path string) (int, error) {
	records, err := store.LoadAll(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "load store")
	}
	if err := WriteSnapshot(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
