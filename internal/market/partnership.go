package market

import "github.com/google/uuid"

// Partnership splits a listing's collected earnings between its primary owner
// and weighted partners. Partner shares live in (0,1) and must sum to
// strictly less than 1; the owner implicitly keeps the remainder.
type Partnership struct {
	ListingID    uuid.UUID
	PrimaryOwner uuid.UUID

	partners map[uuid.UUID]float64
}

func NewPartnership(listingID, owner uuid.UUID) *Partnership {
	return &Partnership{
		ListingID:    listingID,
		PrimaryOwner: owner,
		partners:     map[uuid.UUID]float64{},
	}
}

// AddPartner rejects (returns false) rather than clamping: the owner, shares
// outside (0,1), and anything pushing the partner total to >= 1 are refused.
func (p *Partnership) AddPartner(id uuid.UUID, share float64) bool {
	if id == p.PrimaryOwner {
		return false
	}
	if share <= 0.0 || share >= 1.0 {
		return false
	}
	if p.TotalPartnerShare()+share >= 1.0 {
		return false
	}
	p.partners[id] = share
	return true
}

func (p *Partnership) UpdatePartnerShare(id uuid.UUID, share float64) bool {
	current, ok := p.partners[id]
	if !ok {
		return false
	}
	if share <= 0.0 || share >= 1.0 {
		return false
	}
	if p.TotalPartnerShare()-current+share >= 1.0 {
		return false
	}
	p.partners[id] = share
	return true
}

func (p *Partnership) RemovePartner(id uuid.UUID) bool {
	if _, ok := p.partners[id]; !ok {
		return false
	}
	delete(p.partners, id)
	return true
}

func (p *Partnership) TotalPartnerShare() float64 {
	total := 0.0
	for _, s := range p.partners {
		total += s
	}
	return total
}

func (p *Partnership) OwnerShare() float64 {
	return 1.0 - p.TotalPartnerShare()
}

func (p *Partnership) IsMember(id uuid.UUID) bool {
	if id == p.PrimaryOwner {
		return true
	}
	_, ok := p.partners[id]
	return ok
}

func (p *Partnership) ShareOf(id uuid.UUID) float64 {
	if id == p.PrimaryOwner {
		return p.OwnerShare()
	}
	return p.partners[id]
}

func (p *Partnership) PartnerCount() int { return len(p.partners) }

// Partners returns a copy of the partner->share map.
func (p *Partnership) Partners() map[uuid.UUID]float64 {
	out := make(map[uuid.UUID]float64, len(p.partners))
	for id, s := range p.partners {
		out[id] = s
	}
	return out
}

// Distribute splits totalEarnings across partners by share; the owner gets
// the remainder rather than an independently computed cut, so the pieces sum
// to totalEarnings up to float rounding.
func (p *Partnership) Distribute(totalEarnings float64) map[uuid.UUID]float64 {
	out := make(map[uuid.UUID]float64, len(p.partners)+1)
	for id, share := range p.partners {
		out[id] = totalEarnings * share
	}
	out[p.PrimaryOwner] = totalEarnings * p.OwnerShare()
	return out
}
