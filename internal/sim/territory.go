package sim

import (
	"github.com/google/uuid"

	"bazaarcraft/internal/market"
)

// Region is a rectangular claimed area on a world's x/z plane with flat tax
// rates and a treasury agent that receives tax payments.
type Region struct {
	Name                   string
	World                  string
	MinX, MinZ, MaxX, MaxZ int

	TransactionTax float64
	ShopTax        float64
	Treasury       uuid.UUID
	Members        map[uuid.UUID]bool // members pay no transaction tax
}

// Territory implements market.Territory over a static region list.
// Points outside every region are wilderness: zero rates, empty name.
type Territory struct {
	world   *World
	regions []Region
}

func NewTerritory(world *World, regions []Region) *Territory {
	return &Territory{world: world, regions: regions}
}

func (t *Territory) regionAt(pos market.Point) *Region {
	for i := range t.regions {
		r := &t.regions[i]
		if r.World != pos.World {
			continue
		}
		if pos.X >= r.MinX && pos.X <= r.MaxX && pos.Z >= r.MinZ && pos.Z <= r.MaxZ {
			return r
		}
	}
	return nil
}

// TransactionTaxRate taxes outsiders only; region members trade tax-free.
func (t *Territory) TransactionTaxRate(pos market.Point, agent uuid.UUID) float64 {
	r := t.regionAt(pos)
	if r == nil {
		return 0
	}
	if r.Members[agent] {
		return 0
	}
	return r.TransactionTax
}

func (t *Territory) ShopTaxRate(pos market.Point) float64 {
	r := t.regionAt(pos)
	if r == nil {
		return 0
	}
	return r.ShopTax
}

func (t *Territory) PayTax(pos market.Point, amount float64) {
	r := t.regionAt(pos)
	if r == nil || amount <= 0 {
		return
	}
	t.world.Deposit(r.Treasury, amount)
}

func (t *Territory) Name(pos market.Point) string {
	if r := t.regionAt(pos); r != nil {
		return r.Name
	}
	return ""
}
