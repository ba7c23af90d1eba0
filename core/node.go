package core

import (
	"math/big"
	"sync"
	"sync/atomic"

	"clearfund/core/events"
	"clearfund/core/state"
	"clearfund/core/types"
	"clearfund/native/bank"
	"clearfund/native/crowdfund"
	"clearfund/native/donorpass"
	"clearfund/storage"
)

// maxRecentEvents bounds the in-memory event buffer served over RPC.
const maxRecentEvents = 512

// Node wires the crowdfund engine, the donor pass issuer and the state
// manager behind a single mutex. Calls are committed strictly in the order
// they acquire the lock, which gives every operation the atomic,
// non-interleaved semantics the engine assumes.
type Node struct {
	mu     sync.Mutex
	state  *state.Manager
	engine *crowdfund.Engine
	issuer *donorpass.Issuer
	height atomic.Uint64

	eventMu sync.Mutex
	events  []*types.Event
}

type nodeEmitter struct {
	node *Node
}

func (e nodeEmitter) Emit(evt events.Event) {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok || e.node == nil {
		return
	}
	e.node.appendEvent(carrier.Event())
}

// NewNode constructs a node over the supplied database. The vault address
// holds all escrowed pledges.
func NewNode(db storage.Database, vault [20]byte) (*Node, error) {
	manager := state.NewManager(db)
	node := &Node{state: manager}

	height, err := manager.ChainHeightGet()
	if err != nil {
		return nil, err
	}
	node.height.Store(height)

	issuer := donorpass.NewIssuer()
	issuer.SetState(manager)

	engine := crowdfund.NewEngine()
	engine.SetState(manager)
	engine.SetVault(vault)
	engine.SetDonorPassIssuer(issuer)
	engine.SetHeightFunc(node.CurrentHeight)
	engine.SetEmitter(nodeEmitter{node: node})

	node.issuer = issuer
	node.engine = engine
	return node, nil
}

func (n *Node) appendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	n.eventMu.Lock()
	defer n.eventMu.Unlock()
	n.events = append(n.events, evt)
	if len(n.events) > maxRecentEvents {
		n.events = n.events[len(n.events)-maxRecentEvents:]
	}
}

// Events returns a copy of the recently emitted events, oldest first.
func (n *Node) Events() []*types.Event {
	n.eventMu.Lock()
	defer n.eventMu.Unlock()
	out := make([]*types.Event, len(n.events))
	copy(out, n.events)
	return out
}

// CurrentHeight reports the block height all time-window guards evaluate
// against.
func (n *Node) CurrentHeight() uint64 {
	return n.height.Load()
}

// AdvanceHeight moves the clock forward one block and persists the counter.
func (n *Node) AdvanceHeight() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	next := n.height.Load() + 1
	if err := n.state.ChainHeightPut(next); err != nil {
		return 0, err
	}
	n.height.Store(next)
	return next, nil
}

// CampaignLaunch registers a new campaign owned by the caller.
func (n *Node) CampaignLaunch(caller [20]byte, title string, description []byte, link string, fundGoal *big.Int, startsAt, endsAt uint64) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Launch(caller, title, description, link, fundGoal, startsAt, endsAt)
}

// CampaignCancel deletes a campaign that has not started.
func (n *Node) CampaignCancel(caller [20]byte, campaignID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Cancel(caller, campaignID)
}

// CampaignUpdate overwrites the descriptive fields of a campaign.
func (n *Node) CampaignUpdate(caller [20]byte, campaignID uint64, title string, description []byte, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Update(caller, campaignID, title, description, link)
}

// CampaignClaim pays the pledged pool out to the campaign owner.
func (n *Node) CampaignClaim(caller [20]byte, campaignID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Claim(caller, campaignID)
}

// Pledge escrows funds from the caller into the campaign.
func (n *Node) Pledge(caller [20]byte, campaignID uint64, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Pledge(caller, campaignID, amount)
}

// Unpledge withdraws part or all of the caller's investment while the
// campaign is active.
func (n *Node) Unpledge(caller [20]byte, campaignID uint64, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Unpledge(caller, campaignID, amount)
}

// Refund returns the caller's full investment after a failed campaign.
func (n *Node) Refund(caller [20]byte, campaignID uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Refund(caller, campaignID)
}

// CampaignGet returns a copy of the campaign record.
func (n *Node) CampaignGet(campaignID uint64) (*crowdfund.Campaign, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.GetCampaign(campaignID)
}

// InvestmentGet returns a copy of the investor's live investment, or nil when
// none exists.
func (n *Node) InvestmentGet(campaignID uint64, investor [20]byte) (*crowdfund.Investment, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.GetInvestment(campaignID, investor)
}

// DonorPassOwner reports the owner of a minted donor pass token.
func (n *Node) DonorPassOwner(tokenID uint64) ([20]byte, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.issuer.OwnerOf(tokenID)
}

// Balance reports the fungible balance held by an address.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	if account == nil || account.Balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(account.Balance), nil
}

// FundAccount credits an address with freshly issued units. It exists for
// genesis allocations and local development networks only; every later
// balance change flows through the bank transfer primitive.
func (n *Node) FundAccount(addr [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	if account == nil {
		account = &types.Account{Balance: big.NewInt(0)}
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	if amount != nil {
		account.Balance = new(big.Int).Add(account.Balance, amount)
	}
	return n.state.PutAccount(addr[:], account)
}

// GenesisAlloc seeds one address with an initial balance.
type GenesisAlloc struct {
	Address [20]byte
	Balance *big.Int
}

// ApplyGenesis credits the supplied allocations exactly once per database.
// Later starts against the same data directory are no-ops.
func (n *Node) ApplyGenesis(allocs []GenesisAlloc) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	applied, err := n.state.GenesisApplied()
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	for _, alloc := range allocs {
		account, err := n.state.GetAccount(alloc.Address[:])
		if err != nil {
			return err
		}
		if account == nil {
			account = &types.Account{Balance: big.NewInt(0)}
		}
		if account.Balance == nil {
			account.Balance = big.NewInt(0)
		}
		if alloc.Balance != nil {
			account.Balance = new(big.Int).Add(account.Balance, alloc.Balance)
		}
		if err := n.state.PutAccount(alloc.Address[:], account); err != nil {
			return err
		}
	}
	return n.state.MarkGenesisApplied()
}

// Transfer moves funds directly between two principals outside any campaign.
func (n *Node) Transfer(from, to [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return bank.Transfer(n.state, from, to, amount)
}
