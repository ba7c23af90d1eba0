package crowdfund

import (
	"errors"
	"math/big"

	"clearfund/core/events"
	"clearfund/core/types"
	"clearfund/native/bank"
)

var (
	errNilState    = errors.New("crowdfund engine: state not configured")
	errVaultNotSet = errors.New("crowdfund engine: escrow vault not configured")
	errNilInvestor = errors.New("crowdfund engine: investment record missing amount")
)

type engineState interface {
	CrowdfundCampaignGet(id uint64) (*Campaign, bool, error)
	CrowdfundCampaignPut(c *Campaign) error
	CrowdfundCampaignDelete(id uint64) error
	CrowdfundNextCampaignID() (uint64, error)
	CrowdfundInvestmentGet(campaignID uint64, investor [20]byte) (*Investment, bool, error)
	CrowdfundInvestmentPut(inv *Investment) error
	CrowdfundInvestmentDelete(campaignID uint64, investor [20]byte) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// DonorPassIssuer mints one reward token per qualifying pledge. The engine
// invokes it and never inspects the minted token beyond its identifier.
type DonorPassIssuer interface {
	Mint(to [20]byte) (uint64, error)
}

// Engine enforces the crowdfunding escrow state machine: campaign lifecycle
// guards, pledge accounting and the conserved flow of funds through the escrow
// vault. Every operation validates all guards against the current block height
// before touching state, so a failing call leaves zero observable change.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	heightFn func() uint64
	vault    [20]byte
	issuer   DonorPassIssuer
}

// NewEngine constructs a crowdfund engine with a no-op emitter. Callers wire
// the state backend, vault and height source before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		heightFn: func() uint64 { return 0 },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVault configures the address holding pledged funds in escrow.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetDonorPassIssuer configures the reward token issuer invoked for
// qualifying pledges. Passing nil disables minting.
func (e *Engine) SetDonorPassIssuer(issuer DonorPassIssuer) { e.issuer = issuer }

// SetHeightFunc overrides the block height source. Primarily intended for
// tests to provide deterministic heights.
func (e *Engine) SetHeightFunc(height func() uint64) {
	if height == nil {
		e.heightFn = func() uint64 { return 0 }
		return
	}
	e.heightFn = height
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) height() uint64 {
	if e == nil || e.heightFn == nil {
		return 0
	}
	return e.heightFn()
}

func (e *Engine) vaultConfigured() bool {
	return e.vault != ([20]byte{})
}

func (e *Engine) loadCampaign(id uint64) (*Campaign, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	campaign, ok, err := e.state.CrowdfundCampaignGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || campaign == nil {
		return nil, ErrNotFound
	}
	return campaign, nil
}

// Launch validates and registers a new campaign, assigning the next sequential
// identifier. Identifiers start at one and are never reused, even after a
// cancellation.
func (e *Engine) Launch(caller [20]byte, title string, description []byte, link string, fundGoal *big.Int, startsAt, endsAt uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if title == "" || len(description) == 0 || link == "" {
		return 0, ErrEmptyField
	}
	if fundGoal == nil || fundGoal.Sign() <= 0 {
		return 0, ErrInvalidGoal
	}
	height := e.height()
	if startsAt < height {
		return 0, ErrStartInPast
	}
	if endsAt <= height || endsAt < startsAt || endsAt-startsAt > MaxCampaignDuration {
		return 0, ErrInvalidDuration
	}
	id, err := e.state.CrowdfundNextCampaignID()
	if err != nil {
		return 0, err
	}
	campaign := &Campaign{
		ID:            id,
		Owner:         caller,
		Title:         title,
		Description:   append([]byte(nil), description...),
		Link:          link,
		FundGoal:      new(big.Int).Set(fundGoal),
		StartsAt:      startsAt,
		EndsAt:        endsAt,
		PledgedAmount: big.NewInt(0),
	}
	if err := e.state.CrowdfundCampaignPut(campaign); err != nil {
		return 0, err
	}
	e.emit(CampaignLaunchedEvent(campaign))
	return id, nil
}

// Cancel permanently deletes a campaign that has not started yet. Lookups for
// a cancelled identifier report not-found from then on; the identifier itself
// is never reissued.
func (e *Engine) Cancel(caller [20]byte, campaignID uint64) error {
	campaign, err := e.loadCampaign(campaignID)
	if err != nil {
		return err
	}
	if campaign.Owner != caller {
		return ErrNotOwner
	}
	if e.height() >= campaign.StartsAt {
		return ErrCannotCancel
	}
	if err := e.state.CrowdfundCampaignDelete(campaignID); err != nil {
		return err
	}
	e.emit(CampaignCancelledEvent(campaign))
	return nil
}

// Update overwrites the descriptive fields of a campaign that has not ended.
// The goal, window, owner and pledge aggregates are untouched.
func (e *Engine) Update(caller [20]byte, campaignID uint64, title string, description []byte, link string) error {
	campaign, err := e.loadCampaign(campaignID)
	if err != nil {
		return err
	}
	if campaign.Owner != caller {
		return ErrNotOwner
	}
	if e.height() >= campaign.EndsAt {
		return ErrCampaignEnded
	}
	campaign.Title = title
	campaign.Description = append([]byte(nil), description...)
	campaign.Link = link
	if err := e.state.CrowdfundCampaignPut(campaign); err != nil {
		return err
	}
	e.emit(CampaignUpdatedEvent(campaign))
	return nil
}

// Claim pays the full pledged pool out of the escrow vault to the campaign
// owner. It succeeds at most once per campaign; any later attempt reports the
// claim as already settled without moving funds.
func (e *Engine) Claim(caller [20]byte, campaignID uint64) error {
	campaign, err := e.loadCampaign(campaignID)
	if err != nil {
		return err
	}
	if campaign.Owner != caller {
		return ErrNotOwner
	}
	if !campaign.TargetReached {
		return ErrGoalNotReached
	}
	if campaign.Claimed {
		return ErrAlreadyClaimed
	}
	if !e.vaultConfigured() {
		return errVaultNotSet
	}
	payout := new(big.Int).Set(campaign.PledgedAmount)
	if err := bank.Transfer(e.state, e.vault, campaign.Owner, payout); err != nil {
		return err
	}
	campaign.Claimed = true
	if err := e.state.CrowdfundCampaignPut(campaign); err != nil {
		return err
	}
	e.emit(CampaignClaimedEvent(campaign, payout))
	return nil
}

// Pledge escrows amount from the caller into the vault and records it against
// the campaign. The first pledge by an investor creates their investment
// record; later pledges accumulate. Reaching the funding goal latches
// targetReached at the current height, and a single pledge at or above the
// donor pass threshold mints one reward token to the caller.
func (e *Engine) Pledge(caller [20]byte, campaignID uint64, amount *big.Int) error {
	campaign, err := e.loadCampaign(campaignID)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	height := e.height()
	if height < campaign.StartsAt {
		return ErrNotStarted
	}
	if height >= campaign.EndsAt {
		return ErrCampaignEnded
	}
	if !e.vaultConfigured() {
		return errVaultNotSet
	}
	pledged := new(big.Int).Set(amount)
	if err := bank.Transfer(e.state, caller, e.vault, pledged); err != nil {
		return err
	}
	investment, ok, err := e.state.CrowdfundInvestmentGet(campaignID, caller)
	if err != nil {
		return err
	}
	if !ok || investment == nil {
		investment = &Investment{CampaignID: campaignID, Investor: caller, Amount: big.NewInt(0)}
		campaign.PledgedCount++
	}
	if investment.Amount == nil {
		return errNilInvestor
	}
	investment.Amount = new(big.Int).Add(investment.Amount, pledged)
	if err := e.state.CrowdfundInvestmentPut(investment); err != nil {
		return err
	}
	campaign.PledgedAmount = new(big.Int).Add(campaign.PledgedAmount, pledged)
	if !campaign.TargetReached && campaign.PledgedAmount.Cmp(campaign.FundGoal) >= 0 {
		campaign.TargetReached = true
		campaign.TargetReachedBy = height
	}
	if err := e.state.CrowdfundCampaignPut(campaign); err != nil {
		return err
	}
	e.emit(PledgedEvent(campaign, caller, pledged))
	if pledged.Cmp(big.NewInt(DonorPassThreshold)) >= 0 && e.issuer != nil {
		tokenID, err := e.issuer.Mint(caller)
		if err != nil {
			return err
		}
		e.emit(DonorPassMintedEvent(campaignID, caller, tokenID))
	}
	return nil
}

// Unpledge returns amount from the escrow vault to the caller while the
// campaign is still active. Withdrawing the full investment deletes the record
// and decrements the investor count; targetReached is never re-evaluated, so a
// campaign that once hit its goal stays claimable.
func (e *Engine) Unpledge(caller [20]byte, campaignID uint64, amount *big.Int) error {
	campaign, err := e.loadCampaign(campaignID)
	if err != nil {
		return err
	}
	if e.height() >= campaign.EndsAt {
		return ErrCampaignEnded
	}
	investment, ok, err := e.state.CrowdfundInvestmentGet(campaignID, caller)
	if err != nil {
		return err
	}
	if !ok || investment == nil {
		return ErrNoInvestment
	}
	if investment.Amount == nil {
		return errNilInvestor
	}
	withdrawn := big.NewInt(0)
	if amount != nil {
		withdrawn = new(big.Int).Set(amount)
	}
	if withdrawn.Cmp(investment.Amount) > 0 {
		return ErrInsufficientInvestment
	}
	if !e.vaultConfigured() {
		return errVaultNotSet
	}
	if err := bank.Transfer(e.state, e.vault, caller, withdrawn); err != nil {
		return err
	}
	investment.Amount = new(big.Int).Sub(investment.Amount, withdrawn)
	if investment.Amount.Sign() == 0 {
		if err := e.state.CrowdfundInvestmentDelete(campaignID, caller); err != nil {
			return err
		}
		campaign.PledgedCount--
	} else {
		if err := e.state.CrowdfundInvestmentPut(investment); err != nil {
			return err
		}
	}
	campaign.PledgedAmount = new(big.Int).Sub(campaign.PledgedAmount, withdrawn)
	if err := e.state.CrowdfundCampaignPut(campaign); err != nil {
		return err
	}
	e.emit(UnpledgedEvent(campaign, caller, withdrawn))
	return nil
}

// Refund returns an investor's full escrowed balance once the campaign has
// ended without reaching its goal. The investment record is deleted outright.
func (e *Engine) Refund(caller [20]byte, campaignID uint64) error {
	campaign, err := e.loadCampaign(campaignID)
	if err != nil {
		return err
	}
	if e.height() < campaign.EndsAt {
		return ErrCampaignActive
	}
	investment, ok, err := e.state.CrowdfundInvestmentGet(campaignID, caller)
	if err != nil {
		return err
	}
	if !ok || investment == nil {
		return ErrNoInvestment
	}
	if campaign.TargetReached {
		return ErrGoalWasReached
	}
	if investment.Amount == nil {
		return errNilInvestor
	}
	if !e.vaultConfigured() {
		return errVaultNotSet
	}
	refunded := new(big.Int).Set(investment.Amount)
	if err := bank.Transfer(e.state, e.vault, caller, refunded); err != nil {
		return err
	}
	if err := e.state.CrowdfundInvestmentDelete(campaignID, caller); err != nil {
		return err
	}
	campaign.PledgedCount--
	campaign.PledgedAmount = new(big.Int).Sub(campaign.PledgedAmount, refunded)
	if err := e.state.CrowdfundCampaignPut(campaign); err != nil {
		return err
	}
	e.emit(RefundedEvent(campaign, caller, refunded))
	return nil
}

// GetCampaign returns a copy of the campaign record without mutating state.
func (e *Engine) GetCampaign(campaignID uint64) (*Campaign, error) {
	campaign, err := e.loadCampaign(campaignID)
	if err != nil {
		return nil, err
	}
	return campaign.Clone(), nil
}

// GetInvestment returns a copy of the investment an investor holds in a
// campaign, or nil when no live record exists.
func (e *Engine) GetInvestment(campaignID uint64, investor [20]byte) (*Investment, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	investment, ok, err := e.state.CrowdfundInvestmentGet(campaignID, investor)
	if err != nil {
		return nil, err
	}
	if !ok || investment == nil {
		return nil, nil
	}
	return investment.Clone(), nil
}
