package store

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/EventSyncor/internal/intervals"
)

// Interval is a closed, confirmed-coverage block range.
type Interval = intervals.Interval

// Block holds the header fields the store persists for every ingested
// block. Numeric fields wider than 64 bits are arbitrary precision.
type Block struct {
	Hash             common.Hash
	Number           *big.Int
	Timestamp        *big.Int
	ParentHash       common.Hash
	BaseFeePerGas    *big.Int // nil for pre-EIP-1559 blocks
	Difficulty       *big.Int
	ExtraData        string
	GasLimit         *big.Int
	GasUsed          *big.Int
	LogsBloom        string
	Miner            common.Address
	MixHash          common.Hash
	Nonce            string
	ReceiptsRoot     common.Hash
	Sha3Uncles       common.Hash
	Size             *big.Int
	StateRoot        common.Hash
	TotalDifficulty  *big.Int
	TransactionsRoot common.Hash
}

// TransactionType tags the envelope variant of a transaction. Unknown
// envelope tags are carried through verbatim.
type TransactionType string

const (
	TxTypeLegacy  TransactionType = "legacy"
	TxTypeEIP2930 TransactionType = "eip2930"
	TxTypeEIP1559 TransactionType = "eip1559"
	TxTypeDeposit TransactionType = "deposit"
)

// knownTransactionTypes is the set of envelope variants with a typed
// column subset. Anything else round-trips as an unknown tag with only
// the shared columns populated.
var knownTransactionTypes = map[TransactionType]struct{}{
	TxTypeLegacy:  {},
	TxTypeEIP2930: {},
	TxTypeEIP1559: {},
	TxTypeDeposit: {},
}

// IsKnownTransactionType reports whether t has a typed column subset.
func IsKnownTransactionType(t TransactionType) bool {
	_, ok := knownTransactionTypes[t]
	return ok
}

// Transaction is the sum over the supported envelope variants. The
// pointer fields form the variant payloads: GasPrice belongs to legacy
// and eip2930, the fee-cap pair to eip1559, AccessList to eip2930 and
// eip1559. Deposit and unknown variants carry none of them.
type Transaction struct {
	Hash                 common.Hash
	BlockHash            common.Hash
	BlockNumber          *big.Int
	TransactionIndex     uint64
	From                 common.Address
	To                   *common.Address // nil for contract creation
	Value                *big.Int
	Input                string
	Gas                  *big.Int
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Nonce                uint64
	R                    string
	S                    string
	V                    string
	Type                 TransactionType
	AccessList           *string
}

// Log is a single contract event as persisted by the store. ID is the
// synthetic "<blockHash>-<logIndex>" key; it is derived at insert time
// when left empty.
type Log struct {
	ID               string
	Address          common.Address
	BlockHash        common.Hash
	BlockNumber      *big.Int
	Data             string
	LogIndex         uint64
	Topics           []common.Hash
	TransactionHash  common.Hash
	TransactionIndex uint64
}

// LogID derives the synthetic log key.
func LogID(blockHash common.Hash, logIndex uint64) string {
	return fmt.Sprintf("%s-%d", strings.ToLower(blockHash.Hex()), logIndex)
}

// LogFilterCriteria selects logs by address and topic values. A nil
// Address slice matches any address; a nil entry in Topics matches any
// value at that position. A single-element slice behaves identically to
// a scalar value.
type LogFilterCriteria struct {
	Address []common.Address
	Topics  [][]common.Hash // up to four positions
}

// ChildAddressLocation describes where a factory event carries the
// deployed child address: one of "topic1", "topic2", "topic3", or
// "offset<N>" for a byte offset into the log data.
type ChildAddressLocation string

// FactoryCriteria selects logs emitted by the children of a factory
// contract. Address, EventSelector and ChildAddressLocation identify
// the factory emitter; Topics constrain the child events themselves.
type FactoryCriteria struct {
	Address              common.Address
	EventSelector        common.Hash
	ChildAddressLocation ChildAddressLocation
	Topics               [][]common.Hash
}

// LogFilter is a named event source backed by a plain log filter, as
// passed to the event iterator.
type LogFilter struct {
	Name                  string
	ChainID               uint64
	Criteria              LogFilterCriteria
	FromBlock             *uint64
	ToBlock               *uint64
	IncludeEventSelectors []common.Hash
}

// Factory is a named event source backed by factory child-address
// derivation.
type Factory struct {
	Name                  string
	ChainID               uint64
	Criteria              FactoryCriteria
	FromBlock             *uint64
	ToBlock               *uint64
	IncludeEventSelectors []common.Hash
}

// LogEvent is one fully-joined row of the ordered event stream.
type LogEvent struct {
	EventSourceName string
	ChainID         uint64
	Log             Log
	Block           Block
	Transaction     Transaction
}

// EventCount is the number of matching logs for one (source, selector)
// pair, computed once per iteration and constant across its pages.
type EventCount struct {
	EventSourceName string
	Selector        *common.Hash // nil for logs without topics
	Count           uint64
}

// LogEventMetadata accompanies every page of the event stream.
type LogEventMetadata struct {
	// PageEndsAtTimestamp is the block timestamp of the last event in
	// the page, or the iteration's upper bound when the page is empty.
	PageEndsAtTimestamp uint64
	Counts              []EventCount
}

// LogEventPage is one page of the ordered event stream.
type LogEventPage struct {
	Events   []LogEvent
	Metadata LogEventMetadata
}
