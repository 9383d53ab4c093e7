package db

import (
	"database/sql"
	"fmt"
	"math/big"

	"github.com/goran-ethernal/EventSyncor/internal/encoding"
	"github.com/russross/meddler"
)

func init() {
	// Register custom meddler converter for *big.Int columns
	meddler.Register("bigtext", BigTextMeddler{})
}

// BigTextMeddler handles conversion between *big.Int and the fixed-width
// padded decimal text representation. The padding keeps lexicographic
// column order equal to numeric order, which the interval bookkeeping and
// the event iterator rely on for range comparisons.
type BigTextMeddler struct{}

func (b BigTextMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	// Use sql.NullString to handle NULL values
	return new(sql.NullString), nil
}

func (b BigTextMeddler) PostRead(fieldAddr, scanTarget interface{}) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	ptr, ok := fieldAddr.(**big.Int)
	if !ok {
		return fmt.Errorf("expected **big.Int, got %T", fieldAddr)
	}

	if !ns.Valid {
		*ptr = nil
		return nil
	}

	n, err := encoding.DecodeBig(ns.String)
	if err != nil {
		return err
	}

	*ptr = n
	return nil
}

func (b BigTextMeddler) PreWrite(field interface{}) (saveValue interface{}, err error) {
	n, ok := field.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected *big.Int, got %T", field)
	}

	if n == nil {
		return nil, nil
	}

	return encoding.EncodeBig(n)
}
