package store

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	pkgstore "github.com/goran-ethernal/EventSyncor/pkg/store"
)

const topicCount = 4

// logFilterFragment is one fully-bound row of a log filter's cartesian
// expansion: at most one value per slot, nil for wildcard slots. It is
// the unit of interval bookkeeping.
type logFilterFragment struct {
	ID      string
	ChainID uint64
	Address *common.Address
	Topics  [topicCount]*common.Hash
}

// factoryFragment is the factory analogue. The emitter address, event
// selector and child address location are always bound.
type factoryFragment struct {
	ID                   string
	ChainID              uint64
	Address              common.Address
	EventSelector        common.Hash
	ChildAddressLocation pkgstore.ChildAddressLocation
	Topics               [topicCount]*common.Hash
}

// buildLogFilterFragments expands a filter criterion into the cartesian
// product of its address and topic slots. Fragment ids are a
// deterministic hash of the bound tuple, so repeated expansion of the
// same criterion always maps onto the same rows.
func buildLogFilterFragments(chainID uint64, criteria pkgstore.LogFilterCriteria) []logFilterFragment {
	addresses := addressSlots(criteria.Address)
	topicSlots := topicSlotValues(criteria.Topics)

	fragments := make([]logFilterFragment, 0, len(addresses))
	for _, address := range addresses {
		for _, t0 := range topicSlots[0] {
			for _, t1 := range topicSlots[1] {
				for _, t2 := range topicSlots[2] {
					for _, t3 := range topicSlots[3] {
						f := logFilterFragment{
							ChainID: chainID,
							Address: address,
							Topics:  [topicCount]*common.Hash{t0, t1, t2, t3},
						}
						f.ID = fragmentID(
							strconv.FormatUint(chainID, 10),
							addressKey(address),
							topicKey(t0), topicKey(t1), topicKey(t2), topicKey(t3),
						)
						fragments = append(fragments, f)
					}
				}
			}
		}
	}

	return fragments
}

// buildFactoryFragments expands a factory criterion the same way; every
// fragment additionally carries the always-bound emitter tuple.
func buildFactoryFragments(chainID uint64, criteria pkgstore.FactoryCriteria) []factoryFragment {
	topicSlots := topicSlotValues(criteria.Topics)

	var fragments []factoryFragment
	for _, t0 := range topicSlots[0] {
		for _, t1 := range topicSlots[1] {
			for _, t2 := range topicSlots[2] {
				for _, t3 := range topicSlots[3] {
					f := factoryFragment{
						ChainID:              chainID,
						Address:              criteria.Address,
						EventSelector:        criteria.EventSelector,
						ChildAddressLocation: criteria.ChildAddressLocation,
						Topics:               [topicCount]*common.Hash{t0, t1, t2, t3},
					}
					f.ID = fragmentID(
						strconv.FormatUint(chainID, 10),
						strings.ToLower(criteria.Address.Hex()),
						strings.ToLower(criteria.EventSelector.Hex()),
						string(criteria.ChildAddressLocation),
						topicKey(t0), topicKey(t1), topicKey(t2), topicKey(t3),
					)
					fragments = append(fragments, f)
				}
			}
		}
	}

	return fragments
}

// addressSlots returns the list of bound address values, or the single
// wildcard slot when no address is given.
func addressSlots(addresses []common.Address) []*common.Address {
	if len(addresses) == 0 {
		return []*common.Address{nil}
	}

	slots := make([]*common.Address, len(addresses))
	for i := range addresses {
		a := addresses[i]
		slots[i] = &a
	}
	return slots
}

// topicSlotValues normalizes the topics matrix to exactly four slots,
// each holding the bound values or the single wildcard.
func topicSlotValues(topics [][]common.Hash) [topicCount][]*common.Hash {
	var slots [topicCount][]*common.Hash

	for i := 0; i < topicCount; i++ {
		if i >= len(topics) || len(topics[i]) == 0 {
			slots[i] = []*common.Hash{nil}
			continue
		}

		values := make([]*common.Hash, len(topics[i]))
		for j := range topics[i] {
			t := topics[i][j]
			values[j] = &t
		}
		slots[i] = values
	}

	return slots
}

func addressKey(a *common.Address) string {
	if a == nil {
		return "null"
	}
	return strings.ToLower(a.Hex())
}

func topicKey(t *common.Hash) string {
	if t == nil {
		return "null"
	}
	return strings.ToLower(t.Hex())
}

// fragmentID hashes the canonical tuple into a stable identifier.
func fragmentID(parts ...string) string {
	return crypto.Keccak256Hash([]byte(strings.Join(parts, "-"))).Hex()
}
