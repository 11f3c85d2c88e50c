package market

import "github.com/google/uuid"

// Outcome is the shared result vocabulary for both transaction directions.
// Validation and resource-insufficiency outcomes are expected in normal
// operation; SettlementFailed marks an external collaborator failing after
// validation passed, with zero ledger mutation guaranteed.
type Outcome string

const (
	Success               Outcome = "SUCCESS"
	WrongDirection        Outcome = "WRONG_DIRECTION"
	NoItemConfigured      Outcome = "NO_ITEM_CONFIGURED"
	InsufficientFunds     Outcome = "INSUFFICIENT_FUNDS"
	InsufficientStock     Outcome = "INSUFFICIENT_STOCK"
	NoSpace               Outcome = "NO_SPACE"
	ShopInsufficientFunds Outcome = "SHOP_INSUFFICIENT_FUNDS"
	InsufficientItems     Outcome = "INSUFFICIENT_ITEMS"
	CapacityFull          Outcome = "CAPACITY_FULL"
	SettlementFailed      Outcome = "SETTLEMENT_FAILED"
)

// Receipt reports a single exchange. Quantity is the actually-transacted
// amount, which for BUY listings may be clamped below the request.
type Receipt struct {
	Outcome   Outcome
	Quantity  int
	Total     float64 // pre-tax
	Tax       float64
	Territory string // named only when tax was actually charged
}

func fail(o Outcome) Receipt { return Receipt{Outcome: o} }

// EarningsReceipt reports an earnings collection, including the per-agent
// split when a partnership is attached.
type EarningsReceipt struct {
	Gross     float64
	Tax       float64
	Net       float64
	Territory string
	Split     map[uuid.UUID]float64 // agent -> amount deposited
}
