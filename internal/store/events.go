package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/EventSyncor/internal/db"
	"github.com/goran-ethernal/EventSyncor/internal/encoding"
	pkgstore "github.com/goran-ethernal/EventSyncor/pkg/store"
	"github.com/russross/meddler"
)

// cond is one node of the predicate tree the event iterator lowers to
// SQL: a parenthesized condition with its positional arguments.
type cond struct {
	sql  string
	args []any
}

func pred(sqlStr string, args ...any) cond {
	return cond{sql: sqlStr, args: args}
}

func andConds(conds ...cond) cond {
	return joinConds(" AND ", conds)
}

func orConds(conds ...cond) cond {
	return joinConds(" OR ", conds)
}

func joinConds(sep string, conds []cond) cond {
	if len(conds) == 1 {
		return conds[0]
	}

	parts := make([]string, len(conds))
	var args []any
	for i, c := range conds {
		parts[i] = c.sql
		args = append(args, c.args...)
	}

	return cond{sql: "(" + strings.Join(parts, sep) + ")", args: args}
}

func inCond(column string, values []any) cond {
	placeholders := strings.Repeat("?, ", len(values))
	return cond{
		sql:  fmt.Sprintf("%s IN (%s)", column, placeholders[:len(placeholders)-2]),
		args: values,
	}
}

// eventColumns aliases every joined column with a log_/block_/tx_
// prefix so one flat row struct scans all three tables.
const eventColumns = `
	l.id AS log_id, l.chain_id AS log_chain_id, l.address AS log_address,
	l.block_hash AS log_block_hash, l.block_number AS log_block_number,
	l.data AS log_data, l.log_index AS log_index,
	l.topic0 AS log_topic0, l.topic1 AS log_topic1,
	l.topic2 AS log_topic2, l.topic3 AS log_topic3,
	l.tx_hash AS log_tx_hash, l.tx_index AS log_tx_index,
	b.hash AS block_hash, b.number AS block_number, b.timestamp AS block_timestamp,
	b.base_fee_per_gas AS block_base_fee_per_gas, b.difficulty AS block_difficulty,
	b.extra_data AS block_extra_data, b.gas_limit AS block_gas_limit,
	b.gas_used AS block_gas_used, b.logs_bloom AS block_logs_bloom,
	b.miner AS block_miner, b.mix_hash AS block_mix_hash, b.nonce AS block_nonce,
	b.parent_hash AS block_parent_hash, b.receipts_root AS block_receipts_root,
	b.sha3_uncles AS block_sha3_uncles, b.size AS block_size,
	b.state_root AS block_state_root, b.total_difficulty AS block_total_difficulty,
	b.transactions_root AS block_transactions_root,
	t.hash AS tx_hash, t.block_hash AS tx_block_hash, t.block_number AS tx_block_number,
	t.tx_index AS tx_index, t.from_address AS tx_from_address, t.to_address AS tx_to_address,
	t.value AS tx_value, t.input AS tx_input, t.gas AS tx_gas, t.gas_price AS tx_gas_price,
	t.max_fee_per_gas AS tx_max_fee_per_gas,
	t.max_priority_fee_per_gas AS tx_max_priority_fee_per_gas,
	t.nonce AS tx_nonce, t.r AS tx_r, t.s AS tx_s, t.v AS tx_v,
	t.tx_type AS tx_type, t.access_list AS tx_access_list`

const eventJoins = `
	FROM logs l
	JOIN blocks b ON b.hash = l.block_hash AND b.chain_id = l.chain_id
	JOIN transactions t ON t.hash = l.tx_hash AND t.chain_id = l.chain_id`

// eventCursor is the position after the last yielded row, in the total
// order (timestamp, chainID, blockNumber, logIndex) with the source
// name as a final tiebreak for sources that overlap on the same log.
type eventCursor struct {
	timestamp   string // encoded
	chainID     uint64
	blockNumber string // encoded
	logIndex    uint64
	sourceName  string
}

// cursorCond expresses "strictly greater than the cursor" as the nested
// OR/AND chain over the order key. A plain timestamp comparison would
// lose ties between rows sharing a timestamp.
func (c *eventCursor) cursorCond() cond {
	return orConds(
		pred("block_timestamp > ?", c.timestamp),
		pred("(block_timestamp = ? AND log_chain_id > ?)", c.timestamp, c.chainID),
		pred("(block_timestamp = ? AND log_chain_id = ? AND log_block_number > ?)",
			c.timestamp, c.chainID, c.blockNumber),
		pred("(block_timestamp = ? AND log_chain_id = ? AND log_block_number = ? AND log_index > ?)",
			c.timestamp, c.chainID, c.blockNumber, c.logIndex),
		pred("(block_timestamp = ? AND log_chain_id = ? AND log_block_number = ? AND log_index = ? AND event_source_name > ?)",
			c.timestamp, c.chainID, c.blockNumber, c.logIndex, c.sourceName),
	)
}

// LogEventIterator pages through the ordered, joined event stream.
// Lazy, finite, non-restartable; abandoning it needs no cleanup.
type LogEventIterator struct {
	store      *Store
	fromTs     string // encoded bounds
	toTs       string
	toTsRaw    uint64
	logFilters []pkgstore.LogFilter
	factories  []pkgstore.Factory
	pageSize   int

	counts      []pkgstore.EventCount
	countsReady bool
	cursor      *eventCursor
	exhausted   bool
	err         error
}

var _ pkgstore.LogEventPager = (*LogEventIterator)(nil)

// GetLogEvents returns an iterator over every log matching any of the
// given sources within [fromTimestamp, toTimestamp], joined with its
// block and transaction, ascending in
// (timestamp, chainID, blockNumber, logIndex).
func (s *Store) GetLogEvents(ctx context.Context, fromTimestamp, toTimestamp uint64,
	logFilters []pkgstore.LogFilter, factories []pkgstore.Factory, pageSize int) pkgstore.LogEventPager {
	return &LogEventIterator{
		store:      s,
		fromTs:     encoding.EncodeUint64(fromTimestamp),
		toTs:       encoding.EncodeUint64(toTimestamp),
		toTsRaw:    toTimestamp,
		logFilters: logFilters,
		factories:  factories,
		pageSize:   pageSize,
	}
}

// Next returns the next page, or nil once a page came back short of
// pageSize. The final short page (possibly empty) is always yielded.
func (it *LogEventIterator) Next(ctx context.Context) (*pkgstore.LogEventPage, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.exhausted {
		return nil, nil
	}

	start := time.Now()
	defer func() { OpDurationLog("get_log_events", time.Since(start)) }()

	// The counts preamble runs once per iteration; its result is
	// constant across pages.
	if !it.countsReady {
		counts, err := it.queryCounts(ctx)
		if err != nil {
			it.err = err
			return nil, err
		}
		it.counts = counts
		it.countsReady = true
	}

	rows, err := it.queryPage(ctx)
	if err != nil {
		it.err = err
		return nil, err
	}

	if len(rows) < it.pageSize {
		it.exhausted = true
	}

	page := &pkgstore.LogEventPage{
		Events: make([]pkgstore.LogEvent, len(rows)),
		Metadata: pkgstore.LogEventMetadata{
			PageEndsAtTimestamp: it.toTsRaw,
			Counts:              it.counts,
		},
	}

	for i, row := range rows {
		page.Events[i] = row.toLogEvent()
	}

	if len(rows) > 0 {
		last := rows[len(rows)-1]
		page.Metadata.PageEndsAtTimestamp = last.BlockTimestamp.Uint64()

		timestamp, err := encoding.EncodeBig(last.BlockTimestamp)
		if err != nil {
			it.err = err
			return nil, err
		}
		blockNumber, err := encoding.EncodeBig(last.LogBlockNumber)
		if err != nil {
			it.err = err
			return nil, err
		}
		it.cursor = &eventCursor{
			timestamp:   timestamp,
			chainID:     last.LogChainID,
			blockNumber: blockNumber,
			logIndex:    last.LogIndex,
			sourceName:  last.EventSourceName,
		}
	}

	EventPageServed(len(rows))

	return page, nil
}

// queryPage selects one page: the union of all source branches, cursor
// applied on top, ordered by the total order key.
func (it *LogEventIterator) queryPage(ctx context.Context) ([]*dbEvent, error) {
	branches, err := it.sourceBranches(true)
	if err != nil {
		return nil, err
	}
	if len(branches) == 0 {
		return nil, nil
	}

	parts := make([]string, len(branches))
	var args []any
	for i, branch := range branches {
		parts[i] = branch.sql
		args = append(args, branch.args...)
	}

	query := "SELECT * FROM (" + strings.Join(parts, "\n\tUNION ALL\n") + ") events"

	if it.cursor != nil {
		cursorCond := it.cursor.cursorCond()
		query += "\nWHERE " + cursorCond.sql
		args = append(args, cursorCond.args...)
	}

	query += `
		ORDER BY block_timestamp ASC, log_chain_id ASC, log_block_number ASC,
			log_index ASC, event_source_name ASC
		LIMIT ?`
	args = append(args, it.pageSize)

	var rows []*dbEvent
	if err := meddler.QueryAll(it.store.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", db.ClassifyError(err))
	}

	return rows, nil
}

// queryCounts runs the per-iteration count preamble: matching log
// totals per (source, topic0), over the same predicate minus the
// includeEventSelectors clause.
func (it *LogEventIterator) queryCounts(ctx context.Context) ([]pkgstore.EventCount, error) {
	branches, err := it.countBranches()
	if err != nil {
		return nil, err
	}
	if len(branches) == 0 {
		return nil, nil
	}

	parts := make([]string, len(branches))
	var args []any
	for i, branch := range branches {
		parts[i] = branch.sql
		args = append(args, branch.args...)
	}

	query := strings.Join(parts, "\nUNION ALL\n") +
		"\nORDER BY event_source_name ASC, selector ASC"

	var rows []*dbEventCount
	if err := meddler.QueryAll(it.store.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query event counts: %w", db.ClassifyError(err))
	}

	counts := make([]pkgstore.EventCount, len(rows))
	for i, row := range rows {
		counts[i] = pkgstore.EventCount{
			EventSourceName: row.EventSourceName,
			Selector:        row.Selector,
			Count:           row.Count,
		}
	}

	return counts, nil
}

// sourceBranches builds one SELECT per source. With selectors true the
// includeEventSelectors clause applies (page queries); counts leave it
// out.
func (it *LogEventIterator) sourceBranches(selectors bool) ([]cond, error) {
	branches := make([]cond, 0, len(it.logFilters)+len(it.factories))

	for _, filter := range it.logFilters {
		where := it.logFilterPredicate(filter, selectors)
		branches = append(branches, cond{
			sql:  "SELECT ? AS event_source_name," + eventColumns + eventJoins + "\n\tWHERE " + where.sql,
			args: append([]any{filter.Name}, where.args...),
		})
	}

	for _, factory := range it.factories {
		where, err := it.factoryPredicate(factory, selectors)
		if err != nil {
			return nil, err
		}
		branches = append(branches, cond{
			sql:  "SELECT ? AS event_source_name," + eventColumns + eventJoins + "\n\tWHERE " + where.sql,
			args: append([]any{factory.Name}, where.args...),
		})
	}

	return branches, nil
}

func (it *LogEventIterator) countBranches() ([]cond, error) {
	const countJoins = `
	FROM logs l
	JOIN blocks b ON b.hash = l.block_hash AND b.chain_id = l.chain_id`

	branches := make([]cond, 0, len(it.logFilters)+len(it.factories))

	for _, filter := range it.logFilters {
		where := it.logFilterPredicate(filter, false)
		branches = append(branches, cond{
			sql: "SELECT ? AS event_source_name, l.topic0 AS selector, count(*) AS count" +
				countJoins + "\nWHERE " + where.sql + "\nGROUP BY l.topic0",
			args: append([]any{filter.Name}, where.args...),
		})
	}

	for _, factory := range it.factories {
		where, err := it.factoryPredicate(factory, false)
		if err != nil {
			return nil, err
		}
		branches = append(branches, cond{
			sql: "SELECT ? AS event_source_name, l.topic0 AS selector, count(*) AS count" +
				countJoins + "\nWHERE " + where.sql + "\nGROUP BY l.topic0",
			args: append([]any{factory.Name}, where.args...),
		})
	}

	return branches, nil
}

// logFilterPredicate lowers one log filter source to its condition tree.
func (it *LogEventIterator) logFilterPredicate(filter pkgstore.LogFilter, selectors bool) cond {
	conds := []cond{
		pred("l.chain_id = ?", filter.ChainID),
		pred("b.timestamp >= ?", it.fromTs),
		pred("b.timestamp <= ?", it.toTs),
	}

	if len(filter.Criteria.Address) > 0 {
		values := make([]any, len(filter.Criteria.Address))
		for i, a := range filter.Criteria.Address {
			values[i] = hexKey(a.Hex())
		}
		conds = append(conds, inCond("l.address", values))
	}

	conds = append(conds, topicConds(filter.Criteria.Topics)...)
	conds = append(conds, it.blockRangeConds(filter.FromBlock, filter.ToBlock)...)

	if selectors && len(filter.IncludeEventSelectors) > 0 {
		conds = append(conds, selectorCond(filter.IncludeEventSelectors))
	}

	return andConds(conds...)
}

// factoryPredicate additionally constrains the log address to the set
// of child addresses derived from the factory's emitter, up to the
// event's own block.
func (it *LogEventIterator) factoryPredicate(factory pkgstore.Factory, selectors bool) (cond, error) {
	expr, err := childAddressExpression(factory.Criteria.ChildAddressLocation, "f")
	if err != nil {
		return cond{}, err
	}

	childSubquery := fmt.Sprintf(`l.address IN (
		SELECT %s FROM logs f
		WHERE f.chain_id = ? AND f.address = ? AND f.topic0 = ?
			AND f.block_number <= l.block_number
	)`, expr)

	conds := []cond{
		pred("l.chain_id = ?", factory.ChainID),
		pred("b.timestamp >= ?", it.fromTs),
		pred("b.timestamp <= ?", it.toTs),
		pred(childSubquery,
			factory.ChainID,
			hexKey(factory.Criteria.Address.Hex()),
			hexKey(factory.Criteria.EventSelector.Hex()),
		),
	}

	conds = append(conds, topicConds(factory.Criteria.Topics)...)
	conds = append(conds, it.blockRangeConds(factory.FromBlock, factory.ToBlock)...)

	if selectors && len(factory.IncludeEventSelectors) > 0 {
		conds = append(conds, selectorCond(factory.IncludeEventSelectors))
	}

	return andConds(conds...), nil
}

func (it *LogEventIterator) blockRangeConds(fromBlock, toBlock *uint64) []cond {
	var conds []cond
	if fromBlock != nil {
		conds = append(conds, pred("l.block_number >= ?", encoding.EncodeUint64(*fromBlock)))
	}
	if toBlock != nil {
		conds = append(conds, pred("l.block_number <= ?", encoding.EncodeUint64(*toBlock)))
	}
	return conds
}

func topicConds(topics [][]common.Hash) []cond {
	var conds []cond
	for i, values := range topics {
		if i >= topicCount || len(values) == 0 {
			continue
		}
		args := make([]any, len(values))
		for j, t := range values {
			args[j] = hexKey(t.Hex())
		}
		conds = append(conds, inCond(fmt.Sprintf("l.topic%d", i), args))
	}
	return conds
}

func selectorCond(selectors []common.Hash) cond {
	values := make([]any, len(selectors))
	for i, sel := range selectors {
		values[i] = hexKey(sel.Hex())
	}
	return inCond("l.topic0", values)
}
