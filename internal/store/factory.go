package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/EventSyncor/internal/db"
	"github.com/goran-ethernal/EventSyncor/internal/encoding"
	pkgstore "github.com/goran-ethernal/EventSyncor/pkg/store"
	"github.com/russross/meddler"
)

const childAddressHexLen = 40 // 20 bytes

// childAddressExpression returns the SQL expression deriving a child
// address from a factory emitter log row. An address always sits in the
// low 20 bytes of a left-padded 32-byte word: topics are one such word,
// and "offset<K>" names the word starting at byte K of the log data.
// Stored hex is lowercase with a 0x prefix, so plain substrings suffice.
func childAddressExpression(location pkgstore.ChildAddressLocation, rowAlias string) (string, error) {
	switch location {
	case "topic1", "topic2", "topic3":
		// "0x" + 64 hex chars; the address is the last 40.
		return fmt.Sprintf("'0x' || substr(%s.%s, %d)", rowAlias, location, 2+24+1), nil
	}

	if offset, ok := strings.CutPrefix(string(location), "offset"); ok {
		byteOffset, err := strconv.ParseUint(offset, 10, 32)
		if err != nil {
			return "", fmt.Errorf("invalid child address location %q: %w", location, err)
		}
		// Skip the 0x prefix, byteOffset bytes, and the word's 12
		// padding bytes; substr is 1-based.
		return fmt.Sprintf("'0x' || substr(%s.data, %d, %d)",
			rowAlias, 2+2*byteOffset+24+1, childAddressHexLen), nil
	}

	return "", fmt.Errorf("invalid child address location %q", location)
}

// ChildAddressPager pages through the addresses derived from a factory's
// emitter logs. The sequence is lazy, finite and non-restartable.
type ChildAddressPager struct {
	store    *Store
	chainID  uint64
	factory  pkgstore.FactoryCriteria
	upTo     string // encoded upper block bound
	pageSize int

	// cursor: strictly after the last seen (block_number, log_index)
	cursorBlock string
	cursorIndex uint64
	started     bool
	exhausted   bool
	err         error
}

var _ pkgstore.ChildAddressPager = (*ChildAddressPager)(nil)

// GetFactoryChildAddresses pages through the child addresses derived
// from all logs matching (address, topic0 = eventSelector) with block
// number at most upToBlock, in ascending block order. Logs landing
// beyond upToBlock after iteration starts are never observed.
func (s *Store) GetFactoryChildAddresses(ctx context.Context, chainID uint64, upToBlock uint64,
	factory pkgstore.FactoryCriteria, pageSize int) pkgstore.ChildAddressPager {
	return &ChildAddressPager{
		store:    s,
		chainID:  chainID,
		factory:  factory,
		upTo:     encoding.EncodeUint64(upToBlock),
		pageSize: pageSize,
	}
}

// Next returns the next page of derived addresses, or nil once a page
// comes back short.
func (p *ChildAddressPager) Next(ctx context.Context) ([]common.Address, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.exhausted {
		return nil, nil
	}

	start := time.Now()
	defer func() { OpDurationLog("get_factory_child_addresses", time.Since(start)) }()

	expr, err := childAddressExpression(p.factory.ChildAddressLocation, "l")
	if err != nil {
		p.err = err
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s AS child_address, l.block_number AS block_number, l.log_index AS log_index
		FROM logs l
		WHERE l.chain_id = ? AND l.address = ? AND l.topic0 = ?
			AND l.block_number <= ?
			AND (l.block_number > ? OR (l.block_number = ? AND l.log_index > ?))
		ORDER BY l.block_number ASC, l.log_index ASC
		LIMIT ?
	`, expr)

	cursorBlock := p.cursorBlock
	if !p.started {
		// Before the first page every row sorts after the zero cursor.
		cursorBlock = ""
	}

	var rows []*dbChildAddress
	err = meddler.QueryAll(p.store.db, &rows, query,
		p.chainID,
		hexKey(p.factory.Address.Hex()),
		hexKey(p.factory.EventSelector.Hex()),
		p.upTo,
		cursorBlock, cursorBlock, p.cursorIndex,
		p.pageSize,
	)
	if err != nil {
		p.err = fmt.Errorf("failed to query child addresses: %w", db.ClassifyError(err))
		return nil, p.err
	}

	if len(rows) < p.pageSize {
		p.exhausted = true
	}
	if len(rows) == 0 {
		return nil, nil
	}

	last := rows[len(rows)-1]
	p.cursorBlock = last.BlockNumber
	p.cursorIndex = last.LogIndex
	p.started = true

	addresses := make([]common.Address, len(rows))
	for i, row := range rows {
		addresses[i] = row.ChildAddress
	}

	return addresses, nil
}
