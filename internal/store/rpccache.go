package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/goran-ethernal/EventSyncor/internal/db"
	"github.com/goran-ethernal/EventSyncor/internal/encoding"
)

const upsertRpcResultQuery = `
	INSERT INTO rpc_request_results (request, block_number, chain_id, result)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (request, block_number, chain_id) DO UPDATE SET result = excluded.result
`

// InsertRpcRequestResult memoizes a contract read keyed on
// (chainID, blockNumber, request). A replayed request overwrites the
// stored result. Rows are evicted only by DeleteRealtimeData.
func (s *Store) InsertRpcRequestResult(ctx context.Context, chainID uint64, blockNumber *big.Int,
	request string, result string) error {
	start := time.Now()
	defer func() { OpDurationLog("insert_rpc_request_result", time.Since(start)) }()

	encoded, err := encoding.EncodeBig(blockNumber)
	if err != nil {
		return fmt.Errorf("rpc request blockNumber: %w", err)
	}

	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	if _, err := s.db.ExecContext(ctx, upsertRpcResultQuery, request, encoded, chainID, result); err != nil {
		return fmt.Errorf("failed to upsert rpc request result: %w", db.ClassifyError(err))
	}

	return nil
}

const selectRpcResultQuery = `
	SELECT result FROM rpc_request_results
	WHERE request = ? AND block_number = ? AND chain_id = ?
`

// GetRpcRequestResult returns the memoized result for the request,
// reporting whether one exists. A missing row is not an error.
func (s *Store) GetRpcRequestResult(ctx context.Context, chainID uint64, blockNumber *big.Int,
	request string) (string, bool, error) {
	start := time.Now()
	defer func() { OpDurationLog("get_rpc_request_result", time.Since(start)) }()

	encoded, err := encoding.EncodeBig(blockNumber)
	if err != nil {
		return "", false, fmt.Errorf("rpc request blockNumber: %w", err)
	}

	var result string
	err = s.db.QueryRowContext(ctx, selectRpcResultQuery, request, encoded, chainID).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		RPCCacheMissInc()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query rpc request result: %w", db.ClassifyError(err))
	}

	RPCCacheHitInc()

	return result, true, nil
}
