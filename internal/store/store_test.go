package store

import (
	"fmt"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/EventSyncor/internal/db"
	"github.com/goran-ethernal/EventSyncor/internal/logger"
	pkgstore "github.com/goran-ethernal/EventSyncor/pkg/store"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "syncstore_test_*.db")
	require.NoError(t, err)
	tmpFile.Close()

	dbPath := tmpFile.Name()

	sqlDB, err := db.NewSQLiteDB(dbPath)
	require.NoError(t, err)

	store := NewStore(sqlDB, dbPath, logger.NewNopLogger(), nil)
	require.NoError(t, store.MigrateUp())

	cleanup := func() {
		sqlDB.Close()
		os.Remove(dbPath)
		os.Remove(dbPath + "-wal")
		os.Remove(dbPath + "-shm")
	}

	return store, cleanup
}

// testBlock builds a block with the given number and timestamp; the hash
// is derived from the number and chain so fixtures stay unique.
func testBlock(chainID, number, timestamp uint64) *pkgstore.Block {
	return &pkgstore.Block{
		Hash:             testBlockHash(chainID, number),
		Number:           new(big.Int).SetUint64(number),
		Timestamp:        new(big.Int).SetUint64(timestamp),
		ParentHash:       testBlockHash(chainID, number-1),
		Difficulty:       big.NewInt(2),
		ExtraData:        "0x",
		GasLimit:         big.NewInt(30_000_000),
		GasUsed:          big.NewInt(21_000),
		LogsBloom:        "0x" + fmt.Sprintf("%0512x", 0),
		Miner:            common.HexToAddress("0x2222222222222222222222222222222222222222"),
		MixHash:          common.HexToHash("0x3333"),
		Nonce:            "0x0000000000000042",
		ReceiptsRoot:     common.HexToHash("0x4444"),
		Sha3Uncles:       common.HexToHash("0x5555"),
		Size:             big.NewInt(1024),
		StateRoot:        common.HexToHash("0x6666"),
		TotalDifficulty:  big.NewInt(1_000_000),
		TransactionsRoot: common.HexToHash("0x7777"),
	}
}

func testBlockHash(chainID, number uint64) common.Hash {
	return common.HexToHash(fmt.Sprintf("0x%016x%016x", chainID, number))
}

func testTxHash(chainID, number, txIndex uint64) common.Hash {
	return common.HexToHash(fmt.Sprintf("0xaa%014x%016x%016x", chainID, number, txIndex))
}

func testTransaction(chainID, number, txIndex uint64) *pkgstore.Transaction {
	to := common.HexToAddress("0x9999999999999999999999999999999999999999")

	return &pkgstore.Transaction{
		Hash:             testTxHash(chainID, number, txIndex),
		BlockHash:        testBlockHash(chainID, number),
		BlockNumber:      new(big.Int).SetUint64(number),
		TransactionIndex: txIndex,
		From:             common.HexToAddress("0x8888888888888888888888888888888888888888"),
		To:               &to,
		Value:            big.NewInt(1),
		Input:            "0x",
		Gas:              big.NewInt(21_000),
		GasPrice:         big.NewInt(1_000_000_000),
		Nonce:            txIndex,
		R:                "0x1",
		S:                "0x2",
		V:                "0x1b",
		Type:             pkgstore.TxTypeLegacy,
	}
}

func testLog(chainID, number, txIndex, logIndex uint64, address common.Address, topics ...common.Hash) *pkgstore.Log {
	return &pkgstore.Log{
		Address:          address,
		BlockHash:        testBlockHash(chainID, number),
		BlockNumber:      new(big.Int).SetUint64(number),
		Data:             "0x",
		LogIndex:         logIndex,
		Topics:           topics,
		TransactionHash:  testTxHash(chainID, number, txIndex),
		TransactionIndex: txIndex,
	}
}

// insertBatch seeds one block with a transaction and the given logs,
// recording coverage for the filter.
func insertBatch(t *testing.T, s *Store, chainID, number, timestamp uint64,
	filter pkgstore.LogFilterCriteria, interval pkgstore.Interval, logs ...*pkgstore.Log) {
	t.Helper()

	err := s.InsertLogFilterInterval(t.Context(), chainID,
		filter,
		testBlock(chainID, number, timestamp),
		[]*pkgstore.Transaction{testTransaction(chainID, number, 0)},
		logs,
		interval,
	)
	require.NoError(t, err)
}

func tableCount(t *testing.T, s *Store, table string) int {
	t.Helper()

	var count int
	require.NoError(t, s.db.QueryRow("SELECT count(*) FROM "+table).Scan(&count))
	return count
}
