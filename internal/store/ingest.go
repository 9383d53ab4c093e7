package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/EventSyncor/internal/db"
	"github.com/goran-ethernal/EventSyncor/internal/encoding"
	"github.com/goran-ethernal/EventSyncor/internal/intervals"
	pkgstore "github.com/goran-ethernal/EventSyncor/pkg/store"
)

// InsertLogFilterInterval records a fetched batch for a log filter. Raw
// rows insert with ignore-on-conflict so replays are safe; afterwards
// every fragment of the filter gets the new interval merged into its
// canonical coverage. The whole call is one transaction.
func (s *Store) InsertLogFilterInterval(ctx context.Context, chainID uint64,
	filter pkgstore.LogFilterCriteria, block *pkgstore.Block, transactions []*pkgstore.Transaction,
	logs []*pkgstore.Log, interval pkgstore.Interval) error {
	start := time.Now()
	defer func() { OpDurationLog("insert_log_filter_interval", time.Since(start)) }()

	tx, done, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := s.insertBatchTx(tx, chainID, block, transactions, logs); err != nil {
		return err
	}

	for _, fragment := range buildLogFilterFragments(chainID, filter) {
		if _, err := s.mergeLogFilterFragmentTx(tx, fragment, &interval); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", db.ClassifyError(err))
	}

	s.log.Debugf("inserted log filter interval: chain_id=%d blocks=[%d,%d] txs=%d logs=%d",
		chainID, interval.Start, interval.End, len(transactions), len(logs))

	return nil
}

// InsertFactoryChildAddressLogs stores logs scanned from a factory
// emitter contract. No coverage is recorded; the emitter's coverage is
// tracked by the factory filter that requested the scan.
func (s *Store) InsertFactoryChildAddressLogs(ctx context.Context, chainID uint64, logs []*pkgstore.Log) error {
	start := time.Now()
	defer func() { OpDurationLog("insert_factory_child_address_logs", time.Since(start)) }()

	tx, done, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := s.insertLogsTx(tx, chainID, logs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", db.ClassifyError(err))
	}

	return nil
}

// InsertFactoryLogFilterInterval is InsertLogFilterInterval for a
// factory child-address filter.
func (s *Store) InsertFactoryLogFilterInterval(ctx context.Context, chainID uint64,
	factory pkgstore.FactoryCriteria, block *pkgstore.Block, transactions []*pkgstore.Transaction,
	logs []*pkgstore.Log, interval pkgstore.Interval) error {
	start := time.Now()
	defer func() { OpDurationLog("insert_factory_log_filter_interval", time.Since(start)) }()

	tx, done, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := s.insertBatchTx(tx, chainID, block, transactions, logs); err != nil {
		return err
	}

	for _, fragment := range buildFactoryFragments(chainID, factory) {
		if _, err := s.mergeFactoryFragmentTx(tx, fragment, &interval); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", db.ClassifyError(err))
	}

	s.log.Debugf("inserted factory log filter interval: chain_id=%d blocks=[%d,%d] txs=%d logs=%d",
		chainID, interval.Start, interval.End, len(transactions), len(logs))

	return nil
}

// InsertRealtimeBlock stores one speculative block from the chain tip.
// Coverage is recorded in bulk at confirmation via InsertRealtimeInterval.
func (s *Store) InsertRealtimeBlock(ctx context.Context, chainID uint64,
	block *pkgstore.Block, transactions []*pkgstore.Transaction, logs []*pkgstore.Log) error {
	start := time.Now()
	defer func() { OpDurationLog("insert_realtime_block", time.Since(start)) }()

	tx, done, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := s.insertBatchTx(tx, chainID, block, transactions, logs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", db.ClassifyError(err))
	}

	return nil
}

// InsertRealtimeInterval confirms coverage of a realtime range for every
// fragment of the given filters and factories. Each factory is also
// recorded as a plain log filter on its (address, eventSelector) pair so
// the emitter scan coverage can be reused by later backfills.
func (s *Store) InsertRealtimeInterval(ctx context.Context, chainID uint64,
	logFilters []pkgstore.LogFilterCriteria, factories []pkgstore.FactoryCriteria,
	interval pkgstore.Interval) error {
	start := time.Now()
	defer func() { OpDurationLog("insert_realtime_interval", time.Since(start)) }()

	tx, done, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer done()

	for _, filter := range logFilters {
		for _, fragment := range buildLogFilterFragments(chainID, filter) {
			if _, err := s.mergeLogFilterFragmentTx(tx, fragment, &interval); err != nil {
				return err
			}
		}
	}

	for _, factory := range factories {
		for _, fragment := range buildFactoryFragments(chainID, factory) {
			if _, err := s.mergeFactoryFragmentTx(tx, fragment, &interval); err != nil {
				return err
			}
		}

		emitterFilter := pkgstore.LogFilterCriteria{
			Address: []common.Address{factory.Address},
			Topics:  [][]common.Hash{{factory.EventSelector}},
		}
		for _, fragment := range buildLogFilterFragments(chainID, emitterFilter) {
			if _, err := s.mergeLogFilterFragmentTx(tx, fragment, &interval); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", db.ClassifyError(err))
	}

	s.log.Debugf("inserted realtime interval: chain_id=%d blocks=[%d,%d] filters=%d factories=%d",
		chainID, interval.Start, interval.End, len(logFilters), len(factories))

	return nil
}

// insertBatchTx writes the raw block, transaction and log rows of one
// ingestion batch.
func (s *Store) insertBatchTx(tx *sql.Tx, chainID uint64, block *pkgstore.Block,
	transactions []*pkgstore.Transaction, logs []*pkgstore.Log) error {
	if block != nil {
		if err := s.insertBlockTx(tx, chainID, block); err != nil {
			return err
		}
	}

	if err := s.insertTransactionsTx(tx, chainID, transactions); err != nil {
		return err
	}

	return s.insertLogsTx(tx, chainID, logs)
}

const insertBlockQuery = `
	INSERT INTO blocks (
		hash, chain_id, number, timestamp, base_fee_per_gas, difficulty,
		extra_data, gas_limit, gas_used, logs_bloom, miner, mix_hash, nonce,
		parent_hash, receipts_root, sha3_uncles, size, state_root,
		total_difficulty, transactions_root
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (hash) DO NOTHING
`

func (s *Store) insertBlockTx(tx *sql.Tx, chainID uint64, block *pkgstore.Block) error {
	number, err := encodeRequiredBig("block.number", block.Number)
	if err != nil {
		return err
	}
	timestamp, err := encodeRequiredBig("block.timestamp", block.Timestamp)
	if err != nil {
		return err
	}
	baseFee, err := encodeOptionalBig("block.baseFeePerGas", block.BaseFeePerGas)
	if err != nil {
		return err
	}
	difficulty, err := encodeRequiredBig("block.difficulty", block.Difficulty)
	if err != nil {
		return err
	}
	gasLimit, err := encodeRequiredBig("block.gasLimit", block.GasLimit)
	if err != nil {
		return err
	}
	gasUsed, err := encodeRequiredBig("block.gasUsed", block.GasUsed)
	if err != nil {
		return err
	}
	size, err := encodeRequiredBig("block.size", block.Size)
	if err != nil {
		return err
	}
	totalDifficulty, err := encodeRequiredBig("block.totalDifficulty", block.TotalDifficulty)
	if err != nil {
		return err
	}

	_, err = tx.Exec(insertBlockQuery,
		hexKey(block.Hash.Hex()),
		chainID,
		number,
		timestamp,
		baseFee,
		difficulty,
		hexKey(block.ExtraData),
		gasLimit,
		gasUsed,
		hexKey(block.LogsBloom),
		hexKey(block.Miner.Hex()),
		hexKey(block.MixHash.Hex()),
		hexKey(block.Nonce),
		hexKey(block.ParentHash.Hex()),
		hexKey(block.ReceiptsRoot.Hex()),
		hexKey(block.Sha3Uncles.Hex()),
		size,
		hexKey(block.StateRoot.Hex()),
		totalDifficulty,
		hexKey(block.TransactionsRoot.Hex()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert block %s: %w", block.Hash.Hex(), db.ClassifyError(err))
	}

	RowInsertsAdd("blocks", 1)

	return nil
}

const insertTransactionQuery = `
	INSERT INTO transactions (
		hash, chain_id, block_hash, block_number, tx_index, from_address,
		to_address, value, input, gas, gas_price, max_fee_per_gas,
		max_priority_fee_per_gas, nonce, r, s, v, tx_type, access_list
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (hash) DO NOTHING
`

func (s *Store) insertTransactionsTx(tx *sql.Tx, chainID uint64, transactions []*pkgstore.Transaction) error {
	for _, txn := range transactions {
		blockNumber, err := encodeRequiredBig("transaction.blockNumber", txn.BlockNumber)
		if err != nil {
			return err
		}
		value, err := encodeRequiredBig("transaction.value", txn.Value)
		if err != nil {
			return err
		}
		gas, err := encodeRequiredBig("transaction.gas", txn.Gas)
		if err != nil {
			return err
		}
		gasPrice, err := encodeOptionalBig("transaction.gasPrice", txn.GasPrice)
		if err != nil {
			return err
		}
		maxFee, err := encodeOptionalBig("transaction.maxFeePerGas", txn.MaxFeePerGas)
		if err != nil {
			return err
		}
		maxPriorityFee, err := encodeOptionalBig("transaction.maxPriorityFeePerGas", txn.MaxPriorityFeePerGas)
		if err != nil {
			return err
		}

		var toAddress any
		if txn.To != nil {
			toAddress = hexKey(txn.To.Hex())
		}

		var accessList any
		if txn.AccessList != nil {
			accessList = *txn.AccessList
		}

		_, err = tx.Exec(insertTransactionQuery,
			hexKey(txn.Hash.Hex()),
			chainID,
			hexKey(txn.BlockHash.Hex()),
			blockNumber,
			txn.TransactionIndex,
			hexKey(txn.From.Hex()),
			toAddress,
			value,
			hexKey(txn.Input),
			gas,
			gasPrice,
			maxFee,
			maxPriorityFee,
			txn.Nonce,
			hexKey(txn.R),
			hexKey(txn.S),
			hexKey(txn.V),
			string(txn.Type),
			accessList,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.Hash.Hex(), db.ClassifyError(err))
		}
	}

	RowInsertsAdd("transactions", len(transactions))

	return nil
}

const insertLogQuery = `
	INSERT INTO logs (
		id, chain_id, address, block_hash, block_number, data, log_index,
		topic0, topic1, topic2, topic3, tx_hash, tx_index
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING
`

func (s *Store) insertLogsTx(tx *sql.Tx, chainID uint64, logs []*pkgstore.Log) error {
	for _, l := range logs {
		id := l.ID
		if id == "" {
			id = pkgstore.LogID(l.BlockHash, l.LogIndex)
		}

		blockNumber, err := encodeRequiredBig("log.blockNumber", l.BlockNumber)
		if err != nil {
			return err
		}

		topics := make([]any, topicCount)
		for i := range l.Topics {
			if i >= topicCount {
				break
			}
			topics[i] = hexKey(l.Topics[i].Hex())
		}

		_, err = tx.Exec(insertLogQuery,
			id,
			chainID,
			hexKey(l.Address.Hex()),
			hexKey(l.BlockHash.Hex()),
			blockNumber,
			hexKey(l.Data),
			l.LogIndex,
			topics[0],
			topics[1],
			topics[2],
			topics[3],
			hexKey(l.TransactionHash.Hex()),
			l.TransactionIndex,
		)
		if err != nil {
			return fmt.Errorf("failed to insert log %s: %w", id, db.ClassifyError(err))
		}
	}

	RowInsertsAdd("logs", len(logs))

	return nil
}

// encodeRequiredBig encodes a mandatory bigint column value.
func encodeRequiredBig(field string, n *big.Int) (string, error) {
	encoded, err := encoding.EncodeBig(n)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	return encoded, nil
}

// encodeOptionalBig encodes a nullable bigint column value.
func encodeOptionalBig(field string, n *big.Int) (any, error) {
	if n == nil {
		return nil, nil
	}

	encoded, err := encoding.EncodeBig(n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return encoded, nil
}

// hexKey normalizes a hex string for storage. All persisted hex is
// lowercase so SQL equality and substring derivation compare reliably.
func hexKey(s string) string {
	return strings.ToLower(s)
}

// encodedInterval converts an interval to its column representation.
func encodedInterval(iv intervals.Interval) (string, string) {
	return encoding.EncodeUint64(iv.Start), encoding.EncodeUint64(iv.End)
}
