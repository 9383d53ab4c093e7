package store

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	pkgstore "github.com/goran-ethernal/EventSyncor/pkg/store"
)

// dbInterval is one confirmed coverage row. Block bounds stay in their
// encoded text form until the interval algebra needs them.
type dbInterval struct {
	StartBlock string `meddler:"start_block"`
	EndBlock   string `meddler:"end_block"`
}

// dbChildAddress is one page row of the factory child-address query.
type dbChildAddress struct {
	ChildAddress common.Address `meddler:"child_address,address"`
	BlockNumber  string         `meddler:"block_number"`
	LogIndex     uint64         `meddler:"log_index"`
}

// dbEventCount is one row of the per-iteration count preamble.
type dbEventCount struct {
	EventSourceName string       `meddler:"event_source_name"`
	Selector        *common.Hash `meddler:"selector,hash"`
	Count           uint64       `meddler:"count"`
}

// dbEvent is one fully-joined row of the event stream query. Every
// column is aliased with a log_/block_/tx_ prefix so the three joined
// tables scan into a single flat struct.
type dbEvent struct {
	EventSourceName string `meddler:"event_source_name"`

	LogID          string         `meddler:"log_id"`
	LogChainID     uint64         `meddler:"log_chain_id"`
	LogAddress     common.Address `meddler:"log_address,address"`
	LogBlockHash   common.Hash    `meddler:"log_block_hash,hash"`
	LogBlockNumber *big.Int       `meddler:"log_block_number,bigtext"`
	LogData        string         `meddler:"log_data"`
	LogIndex       uint64         `meddler:"log_index"`
	LogTopic0      *common.Hash   `meddler:"log_topic0,hash"`
	LogTopic1      *common.Hash   `meddler:"log_topic1,hash"`
	LogTopic2      *common.Hash   `meddler:"log_topic2,hash"`
	LogTopic3      *common.Hash   `meddler:"log_topic3,hash"`
	LogTxHash      common.Hash    `meddler:"log_tx_hash,hash"`
	LogTxIndex     uint64         `meddler:"log_tx_index"`

	BlockHash             common.Hash    `meddler:"block_hash,hash"`
	BlockNumber           *big.Int       `meddler:"block_number,bigtext"`
	BlockTimestamp        *big.Int       `meddler:"block_timestamp,bigtext"`
	BlockBaseFeePerGas    *big.Int       `meddler:"block_base_fee_per_gas,bigtext"`
	BlockDifficulty       *big.Int       `meddler:"block_difficulty,bigtext"`
	BlockExtraData        string         `meddler:"block_extra_data"`
	BlockGasLimit         *big.Int       `meddler:"block_gas_limit,bigtext"`
	BlockGasUsed          *big.Int       `meddler:"block_gas_used,bigtext"`
	BlockLogsBloom        string         `meddler:"block_logs_bloom"`
	BlockMiner            common.Address `meddler:"block_miner,address"`
	BlockMixHash          common.Hash    `meddler:"block_mix_hash,hash"`
	BlockNonce            string         `meddler:"block_nonce"`
	BlockParentHash       common.Hash    `meddler:"block_parent_hash,hash"`
	BlockReceiptsRoot     common.Hash    `meddler:"block_receipts_root,hash"`
	BlockSha3Uncles       common.Hash    `meddler:"block_sha3_uncles,hash"`
	BlockSize             *big.Int       `meddler:"block_size,bigtext"`
	BlockStateRoot        common.Hash    `meddler:"block_state_root,hash"`
	BlockTotalDifficulty  *big.Int       `meddler:"block_total_difficulty,bigtext"`
	BlockTransactionsRoot common.Hash    `meddler:"block_transactions_root,hash"`

	TxHash                 common.Hash     `meddler:"tx_hash,hash"`
	TxBlockHash            common.Hash     `meddler:"tx_block_hash,hash"`
	TxBlockNumber          *big.Int        `meddler:"tx_block_number,bigtext"`
	TxIndex                uint64          `meddler:"tx_index"`
	TxFromAddress          common.Address  `meddler:"tx_from_address,address"`
	TxToAddress            *common.Address `meddler:"tx_to_address,address"`
	TxValue                *big.Int        `meddler:"tx_value,bigtext"`
	TxInput                string          `meddler:"tx_input"`
	TxGas                  *big.Int        `meddler:"tx_gas,bigtext"`
	TxGasPrice             *big.Int        `meddler:"tx_gas_price,bigtext"`
	TxMaxFeePerGas         *big.Int        `meddler:"tx_max_fee_per_gas,bigtext"`
	TxMaxPriorityFeePerGas *big.Int        `meddler:"tx_max_priority_fee_per_gas,bigtext"`
	TxNonce                uint64          `meddler:"tx_nonce"`
	TxR                    string          `meddler:"tx_r"`
	TxS                    string          `meddler:"tx_s"`
	TxV                    string          `meddler:"tx_v"`
	TxType                 string          `meddler:"tx_type"`
	TxAccessList           *string         `meddler:"tx_access_list"`
}

// toLogEvent reconstructs the public event shape from a joined row.
func (e *dbEvent) toLogEvent() pkgstore.LogEvent {
	log := pkgstore.Log{
		ID:               e.LogID,
		Address:          e.LogAddress,
		BlockHash:        e.LogBlockHash,
		BlockNumber:      e.LogBlockNumber,
		Data:             e.LogData,
		LogIndex:         e.LogIndex,
		Topics:           packTopics(e.LogTopic0, e.LogTopic1, e.LogTopic2, e.LogTopic3),
		TransactionHash:  e.LogTxHash,
		TransactionIndex: e.LogTxIndex,
	}

	block := pkgstore.Block{
		Hash:             e.BlockHash,
		Number:           e.BlockNumber,
		Timestamp:        e.BlockTimestamp,
		ParentHash:       e.BlockParentHash,
		BaseFeePerGas:    e.BlockBaseFeePerGas,
		Difficulty:       e.BlockDifficulty,
		ExtraData:        e.BlockExtraData,
		GasLimit:         e.BlockGasLimit,
		GasUsed:          e.BlockGasUsed,
		LogsBloom:        e.BlockLogsBloom,
		Miner:            e.BlockMiner,
		MixHash:          e.BlockMixHash,
		Nonce:            e.BlockNonce,
		ReceiptsRoot:     e.BlockReceiptsRoot,
		Sha3Uncles:       e.BlockSha3Uncles,
		Size:             e.BlockSize,
		StateRoot:        e.BlockStateRoot,
		TotalDifficulty:  e.BlockTotalDifficulty,
		TransactionsRoot: e.BlockTransactionsRoot,
	}

	return pkgstore.LogEvent{
		EventSourceName: e.EventSourceName,
		ChainID:         e.LogChainID,
		Log:             log,
		Block:           block,
		Transaction:     e.toTransaction(),
	}
}

// toTransaction rebuilds the tagged transaction variant, keeping only
// the column subset valid for the stored type tag. Unknown tags retain
// the raw type string and the shared columns.
func (e *dbEvent) toTransaction() pkgstore.Transaction {
	tx := pkgstore.Transaction{
		Hash:             e.TxHash,
		BlockHash:        e.TxBlockHash,
		BlockNumber:      e.TxBlockNumber,
		TransactionIndex: e.TxIndex,
		From:             e.TxFromAddress,
		To:               e.TxToAddress,
		Value:            e.TxValue,
		Input:            e.TxInput,
		Gas:              e.TxGas,
		Nonce:            e.TxNonce,
		R:                e.TxR,
		S:                e.TxS,
		V:                e.TxV,
		Type:             pkgstore.TransactionType(e.TxType),
	}

	switch tx.Type {
	case pkgstore.TxTypeLegacy:
		tx.GasPrice = e.TxGasPrice
	case pkgstore.TxTypeEIP2930:
		tx.GasPrice = e.TxGasPrice
		tx.AccessList = e.TxAccessList
	case pkgstore.TxTypeEIP1559:
		tx.MaxFeePerGas = e.TxMaxFeePerGas
		tx.MaxPriorityFeePerGas = e.TxMaxPriorityFeePerGas
		tx.AccessList = e.TxAccessList
	case pkgstore.TxTypeDeposit:
		// shared columns only
	default:
		// unknown envelope: shared columns plus the raw type tag
	}

	return tx
}

// packTopics collapses the four nullable topic columns into the
// non-null prefix array.
func packTopics(topics ...*common.Hash) []common.Hash {
	packed := make([]common.Hash, 0, len(topics))
	for _, t := range topics {
		if t == nil {
			break
		}
		packed = append(packed, *t)
	}
	return packed
}
