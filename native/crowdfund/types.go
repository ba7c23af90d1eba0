package crowdfund

import "math/big"

const (
	// MaxCampaignDuration caps the number of blocks between a campaign's
	// start and end heights.
	MaxCampaignDuration uint64 = 12960

	// DonorPassThreshold is the minimum single-pledge amount that earns the
	// investor a donor pass token.
	DonorPassThreshold int64 = 500
)

// Campaign is a funding round with a goal, a block-height window and the
// aggregate pledge statistics maintained by the engine. The owner, goal and
// window are immutable after launch; only the descriptive fields may change.
type Campaign struct {
	ID              uint64   `json:"id"`
	Owner           [20]byte `json:"owner"`
	Title           string   `json:"title"`
	Description     []byte   `json:"description"`
	Link            string   `json:"link"`
	FundGoal        *big.Int `json:"fundGoal"`
	StartsAt        uint64   `json:"startsAt"`
	EndsAt          uint64   `json:"endsAt"`
	PledgedAmount   *big.Int `json:"pledgedAmount"`
	PledgedCount    uint64   `json:"pledgedCount"`
	TargetReached   bool     `json:"targetReached"`
	TargetReachedBy uint64   `json:"targetReachedBy"`
	Claimed         bool     `json:"claimed"`
}

// Clone returns a deep copy of the campaign so callers can safely mutate the
// copy without affecting the stored instance.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Description = append([]byte(nil), c.Description...)
	if c.FundGoal != nil {
		clone.FundGoal = new(big.Int).Set(c.FundGoal)
	} else {
		clone.FundGoal = big.NewInt(0)
	}
	if c.PledgedAmount != nil {
		clone.PledgedAmount = new(big.Int).Set(c.PledgedAmount)
	} else {
		clone.PledgedAmount = big.NewInt(0)
	}
	return &clone
}

// Active reports whether the campaign accepts pledges at the given height.
func (c *Campaign) Active(height uint64) bool {
	if c == nil {
		return false
	}
	return height >= c.StartsAt && height < c.EndsAt
}

// Ended reports whether the campaign window has closed at the given height.
func (c *Campaign) Ended(height uint64) bool {
	if c == nil {
		return false
	}
	return height >= c.EndsAt
}

// Investment is the live pledge balance a specific investor holds in a
// specific campaign. A record exists iff the amount is positive; the engine
// deletes it outright once the balance reaches zero.
type Investment struct {
	CampaignID uint64   `json:"campaignId"`
	Investor   [20]byte `json:"investor"`
	Amount     *big.Int `json:"amount"`
}

// Clone returns a deep copy of the investment record.
func (i *Investment) Clone() *Investment {
	if i == nil {
		return nil
	}
	clone := *i
	if i.Amount != nil {
		clone.Amount = new(big.Int).Set(i.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}
