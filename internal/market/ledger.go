package market

import "log"

// Ledger lets an external trade contract hold a quantity of a listing's
// stock so a second, unrelated contract cannot also claim it. Contract ids
// are opaque and caller-supplied; one reservation per contract id.
type Ledger struct {
	stock StockSource
	inv   InventoryOps
	log   *log.Logger
}

func NewLedger(stock StockSource, inv InventoryOps, logger *log.Logger) *Ledger {
	return &Ledger{stock: stock, inv: inv, log: logger}
}

// Available is physical stock minus the sum of reservations, floored at 0.
// The floor matters: physical stock can shrink underneath existing holds
// when the container is emptied externally, and that is a recoverable race,
// not a panic.
func (ld *Ledger) Available(l *Listing) int {
	avail := ld.stock.PhysicalStock(l) - l.ReservedTotal()
	if avail < 0 {
		return 0
	}
	return avail
}

// Reserve places (or replaces) a hold for contractID. Re-reserving the same
// contract id is a last-writer-wins upsert, not an additive reserve.
func (ld *Ledger) Reserve(l *Listing, contractID string, qty int) bool {
	if contractID == "" || qty <= 0 {
		return false
	}
	if !l.ExternalTrade {
		return false
	}
	// The check counts every existing hold, including this contract's own
	// prior one; shrinking a hold therefore still requires headroom for the
	// new quantity on top of it.
	if ld.stock.PhysicalStock(l)-l.ReservedTotal() < qty {
		return false
	}
	if l.Reservations == nil {
		l.Reservations = map[string]int{}
	}
	l.Reservations[contractID] = qty
	return true
}

// Release drops the hold for contractID. Releasing an unknown contract id is
// a no-op, reported but not an error.
func (ld *Ledger) Release(l *Listing, contractID string) {
	if _, ok := l.Reservations[contractID]; !ok {
		if ld.log != nil {
			ld.log.Printf("release: no reservation for contract %s on listing %s", contractID, l.ID)
		}
		return
	}
	delete(l.Reservations, contractID)
}

// Settle completes an external trade: verify the hold, physically remove the
// reserved quantity, credit earnings, release the hold, in that order. If the
// physical removal fails nothing else happens.
func (ld *Ledger) Settle(l *Listing, contractID string, amountEarned float64) bool {
	qty, ok := l.Reservations[contractID]
	if !ok {
		if ld.log != nil {
			ld.log.Printf("settle: no reservation for contract %s on listing %s", contractID, l.ID)
		}
		return false
	}
	if !ld.inv.RemoveFromContainer(l, qty) {
		if ld.log != nil {
			ld.log.Printf("settle: container removal failed for contract %s on listing %s", contractID, l.ID)
		}
		return false
	}
	l.Earnings += amountEarned
	delete(l.Reservations, contractID)
	return true
}
