package store

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChildAddressPager yields pages of factory child addresses. Pagers are
// lazy, finite and non-restartable; abandoning one between pages needs
// no cleanup.
type ChildAddressPager interface {
	// Next returns the next page of derived addresses, or nil when the
	// sequence is exhausted.
	Next(ctx context.Context) ([]common.Address, error)
}

// LogEventPager yields pages of the ordered, joined event stream. Each
// page is a snapshot at the time its query ran; rows sorting at or
// before the cursor are never observed twice.
type LogEventPager interface {
	// Next returns the next page, or nil when the sequence is exhausted.
	Next(ctx context.Context) (*LogEventPage, error)
}

// Store is the sync store contract exposed to the runner: transactional
// ingestion of raw chain data, canonical coverage bookkeeping, the
// ordered event stream, the memoized RPC read cache, and reorg
// truncation of speculative data.
type Store interface {
	// InsertLogFilterInterval records a fetched batch for a log filter:
	// raw block/transaction/log inserts plus one confirmed coverage
	// interval for every fragment of the filter.
	InsertLogFilterInterval(ctx context.Context, chainID uint64, filter LogFilterCriteria,
		block *Block, transactions []*Transaction, logs []*Log, interval Interval) error

	// InsertFactoryChildAddressLogs stores logs scanned from a factory
	// emitter contract, without coverage bookkeeping.
	InsertFactoryChildAddressLogs(ctx context.Context, chainID uint64, logs []*Log) error

	// InsertFactoryLogFilterInterval is InsertLogFilterInterval for a
	// factory child-address filter.
	InsertFactoryLogFilterInterval(ctx context.Context, chainID uint64, factory FactoryCriteria,
		block *Block, transactions []*Transaction, logs []*Log, interval Interval) error

	// InsertRealtimeBlock stores a speculative block from the chain tip.
	// Coverage is recorded later, in bulk, via InsertRealtimeInterval.
	InsertRealtimeBlock(ctx context.Context, chainID uint64,
		block *Block, transactions []*Transaction, logs []*Log) error

	// InsertRealtimeInterval confirms coverage of a realtime range for
	// every fragment of the given filters and factories. Factories are
	// additionally recorded as a plain log filter on their
	// (address, eventSelector) pair so emitter coverage can be reused.
	InsertRealtimeInterval(ctx context.Context, chainID uint64,
		logFilters []LogFilterCriteria, factories []FactoryCriteria, interval Interval) error

	// GetLogFilterIntervals returns the canonical confirmed coverage of
	// the filter: the intersection of its fragments' merged intervals.
	GetLogFilterIntervals(ctx context.Context, chainID uint64, filter LogFilterCriteria) ([]Interval, error)

	// GetFactoryLogFilterIntervals is GetLogFilterIntervals for a
	// factory child-address filter.
	GetFactoryLogFilterIntervals(ctx context.Context, chainID uint64, factory FactoryCriteria) ([]Interval, error)

	// GetFactoryChildAddresses pages through the child addresses derived
	// from the factory's emitter logs up to the given block.
	GetFactoryChildAddresses(ctx context.Context, chainID uint64, upToBlock uint64,
		factory FactoryCriteria, pageSize int) ChildAddressPager

	// GetLogEvents pages through every log matching any of the given
	// sources within [fromTimestamp, toTimestamp], joined with its block
	// and transaction, under the total order
	// (timestamp, chainID, blockNumber, logIndex).
	GetLogEvents(ctx context.Context, fromTimestamp, toTimestamp uint64,
		logFilters []LogFilter, factories []Factory, pageSize int) LogEventPager

	// InsertRpcRequestResult memoizes a contract read; the result is
	// overwritten on conflict.
	InsertRpcRequestResult(ctx context.Context, chainID uint64, blockNumber *big.Int,
		request string, result string) error

	// GetRpcRequestResult returns the memoized result, reporting
	// whether one exists.
	GetRpcRequestResult(ctx context.Context, chainID uint64, blockNumber *big.Int,
		request string) (string, bool, error)

	// DeleteRealtimeData clips all speculative rows with block number
	// beyond fromBlock on the given chain, and clamps that chain's
	// coverage intervals to fromBlock. All-or-nothing.
	DeleteRealtimeData(ctx context.Context, chainID uint64, fromBlock uint64) error

	// MigrateUp applies all pending schema migrations.
	MigrateUp() error

	// Kill releases the database handle.
	Kill() error
}
