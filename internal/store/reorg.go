package store

import (
	"context"
	"fmt"
	"time"

	"github.com/goran-ethernal/EventSyncor/internal/db"
	"github.com/goran-ethernal/EventSyncor/internal/encoding"
)

// DeleteRealtimeData clips all speculative data beyond fromBlock on the
// given chain in one transaction: raw rows with block number strictly
// greater than the pivot are deleted, interval rows starting past the
// pivot are dropped, and the remainder are clamped to end at the pivot.
// Rpc cache rows keyed at block 0 (chain-tip reads) survive, since 0 is
// never greater than the pivot.
func (s *Store) DeleteRealtimeData(ctx context.Context, chainID uint64, fromBlock uint64) error {
	start := time.Now()
	defer func() { OpDurationLog("delete_realtime_data", time.Since(start)) }()

	pivot := encoding.EncodeUint64(fromBlock)

	tx, done, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer done()

	deletions := []struct {
		table string
		query string
	}{
		{"blocks", `DELETE FROM blocks WHERE chain_id = ? AND number > ?`},
		{"transactions", `DELETE FROM transactions WHERE chain_id = ? AND block_number > ?`},
		{"logs", `DELETE FROM logs WHERE chain_id = ? AND block_number > ?`},
		{"rpc_request_results", `DELETE FROM rpc_request_results WHERE chain_id = ? AND block_number > ?`},
	}

	var deleted int64
	for _, d := range deletions {
		result, err := tx.Exec(d.query, chainID, pivot)
		if err != nil {
			return fmt.Errorf("failed to delete from %s: %w", d.table, db.ClassifyError(err))
		}
		if n, err := result.RowsAffected(); err == nil {
			deleted += n
		}
	}

	// Intervals starting past the pivot are entirely speculative; the
	// rest clamp so that no coverage claim survives beyond the pivot.
	const deleteLogFilterIntervalsQuery = `
		DELETE FROM log_filter_intervals
		WHERE start_block > ?
			AND log_filter_id IN (SELECT id FROM log_filters WHERE chain_id = ?)
	`
	if _, err := tx.Exec(deleteLogFilterIntervalsQuery, pivot, chainID); err != nil {
		return fmt.Errorf("failed to delete log filter intervals: %w", db.ClassifyError(err))
	}

	const clampLogFilterIntervalsQuery = `
		UPDATE log_filter_intervals
		SET end_block = ?
		WHERE end_block > ?
			AND log_filter_id IN (SELECT id FROM log_filters WHERE chain_id = ?)
	`
	if _, err := tx.Exec(clampLogFilterIntervalsQuery, pivot, pivot, chainID); err != nil {
		return fmt.Errorf("failed to clamp log filter intervals: %w", db.ClassifyError(err))
	}

	const deleteFactoryIntervalsQuery = `
		DELETE FROM factory_log_filter_intervals
		WHERE start_block > ?
			AND factory_id IN (SELECT id FROM factories WHERE chain_id = ?)
	`
	if _, err := tx.Exec(deleteFactoryIntervalsQuery, pivot, chainID); err != nil {
		return fmt.Errorf("failed to delete factory intervals: %w", db.ClassifyError(err))
	}

	const clampFactoryIntervalsQuery = `
		UPDATE factory_log_filter_intervals
		SET end_block = ?
		WHERE end_block > ?
			AND factory_id IN (SELECT id FROM factories WHERE chain_id = ?)
	`
	if _, err := tx.Exec(clampFactoryIntervalsQuery, pivot, pivot, chainID); err != nil {
		return fmt.Errorf("failed to clamp factory intervals: %w", db.ClassifyError(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", db.ClassifyError(err))
	}

	ReorgTruncationsInc()

	s.log.Infof("truncated realtime data: chain_id=%d from_block=%d rows_deleted=%d",
		chainID, fromBlock, deleted)

	return nil
}
