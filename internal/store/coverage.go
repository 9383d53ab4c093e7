package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goran-ethernal/EventSyncor/internal/db"
	"github.com/goran-ethernal/EventSyncor/internal/encoding"
	"github.com/goran-ethernal/EventSyncor/internal/intervals"
	pkgstore "github.com/goran-ethernal/EventSyncor/pkg/store"
	"github.com/russross/meddler"
	"golang.org/x/sync/errgroup"
)

// GetLogFilterIntervals returns the canonical confirmed coverage of the
// filter. Every fragment is first re-merged into canonical form (cheap
// when already merged), then the fragment unions intersect. Fragment
// merges run concurrently, one transaction each.
func (s *Store) GetLogFilterIntervals(ctx context.Context, chainID uint64,
	filter pkgstore.LogFilterCriteria) ([]pkgstore.Interval, error) {
	start := time.Now()
	defer func() { OpDurationLog("get_log_filter_intervals", time.Since(start)) }()

	fragments := buildLogFilterFragments(chainID, filter)
	lists := make([][]intervals.Interval, len(fragments))

	g, gctx := errgroup.WithContext(ctx)
	for i, fragment := range fragments {
		g.Go(func() error {
			merged, err := s.mergeLogFilterFragment(gctx, fragment)
			if err != nil {
				return err
			}
			lists[i] = merged
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return intervals.IntersectionMany(lists), nil
}

// GetFactoryLogFilterIntervals is GetLogFilterIntervals for a factory
// child-address filter.
func (s *Store) GetFactoryLogFilterIntervals(ctx context.Context, chainID uint64,
	factory pkgstore.FactoryCriteria) ([]pkgstore.Interval, error) {
	start := time.Now()
	defer func() { OpDurationLog("get_factory_log_filter_intervals", time.Since(start)) }()

	fragments := buildFactoryFragments(chainID, factory)
	lists := make([][]intervals.Interval, len(fragments))

	g, gctx := errgroup.WithContext(ctx)
	for i, fragment := range fragments {
		g.Go(func() error {
			merged, err := s.mergeFactoryFragment(gctx, fragment)
			if err != nil {
				return err
			}
			lists[i] = merged
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return intervals.IntersectionMany(lists), nil
}

// mergeLogFilterFragment runs one canonicalizing merge in its own
// transaction and returns the fragment's merged coverage.
func (s *Store) mergeLogFilterFragment(ctx context.Context,
	fragment logFilterFragment) ([]intervals.Interval, error) {
	tx, done, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	merged, err := s.mergeLogFilterFragmentTx(tx, fragment, nil)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", db.ClassifyError(err))
	}

	return merged, nil
}

func (s *Store) mergeFactoryFragment(ctx context.Context,
	fragment factoryFragment) ([]intervals.Interval, error) {
	tx, done, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	merged, err := s.mergeFactoryFragmentTx(tx, fragment, nil)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", db.ClassifyError(err))
	}

	return merged, nil
}

const upsertLogFilterQuery = `
	INSERT INTO log_filters (id, chain_id, address, topic0, topic1, topic2, topic3)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING
`

// mergeLogFilterFragmentTx upserts the fragment row, folds the existing
// interval rows together with the optional new interval into their
// canonical union, and rewrites them. Must run inside a transaction.
func (s *Store) mergeLogFilterFragmentTx(tx *sql.Tx, fragment logFilterFragment,
	newInterval *intervals.Interval) ([]intervals.Interval, error) {
	var address any
	if fragment.Address != nil {
		address = hexKey(fragment.Address.Hex())
	}

	args := []any{fragment.ID, fragment.ChainID, address}
	for _, topic := range fragment.Topics {
		if topic != nil {
			args = append(args, hexKey(topic.Hex()))
		} else {
			args = append(args, nil)
		}
	}

	if _, err := tx.Exec(upsertLogFilterQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to upsert log filter fragment: %w", db.ClassifyError(err))
	}

	return s.mergeIntervalRowsTx(tx, "log_filter_intervals", "log_filter_id", fragment.ID, newInterval)
}

const upsertFactoryQuery = `
	INSERT INTO factories (id, chain_id, address, event_selector, child_address_location,
		topic0, topic1, topic2, topic3)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING
`

func (s *Store) mergeFactoryFragmentTx(tx *sql.Tx, fragment factoryFragment,
	newInterval *intervals.Interval) ([]intervals.Interval, error) {
	args := []any{
		fragment.ID,
		fragment.ChainID,
		hexKey(fragment.Address.Hex()),
		hexKey(fragment.EventSelector.Hex()),
		string(fragment.ChildAddressLocation),
	}
	for _, topic := range fragment.Topics {
		if topic != nil {
			args = append(args, hexKey(topic.Hex()))
		} else {
			args = append(args, nil)
		}
	}

	if _, err := tx.Exec(upsertFactoryQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to upsert factory fragment: %w", db.ClassifyError(err))
	}

	return s.mergeIntervalRowsTx(tx, "factory_log_filter_intervals", "factory_id", fragment.ID, newInterval)
}

// mergeIntervalRowsTx performs the interval merge for one fragment id:
// read the existing rows, delete them, union with the optional new
// interval, insert the canonical rows back. Leaves the fragment's rows
// disjoint and maximally merged at every transaction boundary.
func (s *Store) mergeIntervalRowsTx(tx *sql.Tx, table, fkColumn, fragmentID string,
	newInterval *intervals.Interval) ([]intervals.Interval, error) {
	var rows []*dbInterval
	selectQuery := fmt.Sprintf(
		"SELECT start_block, end_block FROM %s WHERE %s = ?", table, fkColumn)
	if err := meddler.QueryAll(tx, &rows, selectQuery, fragmentID); err != nil {
		return nil, fmt.Errorf("failed to query intervals: %w", db.ClassifyError(err))
	}

	existing := make([]intervals.Interval, 0, len(rows)+1)
	for _, row := range rows {
		startBlock, err := encoding.DecodeUint64(row.StartBlock)
		if err != nil {
			return nil, fmt.Errorf("invalid start_block %q: %w", row.StartBlock, err)
		}
		endBlock, err := encoding.DecodeUint64(row.EndBlock)
		if err != nil {
			return nil, fmt.Errorf("invalid end_block %q: %w", row.EndBlock, err)
		}
		existing = append(existing, intervals.Interval{Start: startBlock, End: endBlock})
	}

	if newInterval != nil {
		existing = append(existing, *newInterval)
	}

	merged := intervals.Union(existing)

	// Short-circuit when the canonical form is already on disk.
	if newInterval == nil && len(merged) == len(rows) {
		return merged, nil
	}

	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, fkColumn)
	if _, err := tx.Exec(deleteQuery, fragmentID); err != nil {
		return nil, fmt.Errorf("failed to delete intervals: %w", db.ClassifyError(err))
	}

	insertQuery := fmt.Sprintf(
		"INSERT INTO %s (%s, start_block, end_block) VALUES (?, ?, ?)", table, fkColumn)
	for _, iv := range merged {
		startBlock, endBlock := encodedInterval(iv)
		if _, err := tx.Exec(insertQuery, fragmentID, startBlock, endBlock); err != nil {
			return nil, fmt.Errorf("failed to insert interval: %w", db.ClassifyError(err))
		}
	}

	IntervalMergesInc()

	return merged, nil
}
