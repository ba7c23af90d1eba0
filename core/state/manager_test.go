package state

import (
	"math/big"
	"testing"

	"clearfund/core/types"
	"clearfund/native/crowdfund"
	"clearfund/storage"
)

func testAddr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func newTestManager() *Manager {
	return NewManager(storage.NewMemDB())
}

func TestCampaignRoundTrip(t *testing.T) {
	manager := newTestManager()
	campaign := &crowdfund.Campaign{
		ID:            3,
		Owner:         testAddr(0x01),
		Title:         "Test Campaign",
		Description:   []byte("details"),
		Link:          "https://example.com",
		FundGoal:      big.NewInt(10000),
		StartsAt:      2,
		EndsAt:        100,
		PledgedAmount: big.NewInt(750),
		PledgedCount:  2,
	}
	if err := manager.CrowdfundCampaignPut(campaign); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	loaded, ok, err := manager.CrowdfundCampaignGet(3)
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if loaded.Title != campaign.Title || loaded.Owner != campaign.Owner {
		t.Fatalf("campaign fields lost in round trip")
	}
	if loaded.FundGoal.Cmp(campaign.FundGoal) != 0 || loaded.PledgedAmount.Cmp(campaign.PledgedAmount) != 0 {
		t.Fatalf("amounts lost in round trip")
	}

	if err := manager.CrowdfundCampaignDelete(3); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, ok, err = manager.CrowdfundCampaignGet(3)
	if err != nil {
		t.Fatalf("get after delete failed: %v", err)
	}
	if ok {
		t.Fatalf("campaign survived delete")
	}
}

func TestCampaignGetMissing(t *testing.T) {
	manager := newTestManager()
	campaign, ok, err := manager.CrowdfundCampaignGet(42)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ok || campaign != nil {
		t.Fatalf("missing campaign must report absent")
	}
}

func TestInvestmentRoundTrip(t *testing.T) {
	manager := newTestManager()
	investor := testAddr(0x02)
	inv := &crowdfund.Investment{CampaignID: 1, Investor: investor, Amount: big.NewInt(500)}
	if err := manager.CrowdfundInvestmentPut(inv); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	loaded, ok, err := manager.CrowdfundInvestmentGet(1, investor)
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if loaded.Amount.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("amount lost in round trip: %s", loaded.Amount)
	}

	// Same campaign, different investor.
	_, ok, err = manager.CrowdfundInvestmentGet(1, testAddr(0x03))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ok {
		t.Fatalf("lookup must be keyed by investor")
	}

	if err := manager.CrowdfundInvestmentDelete(1, investor); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, ok, _ = manager.CrowdfundInvestmentGet(1, investor)
	if ok {
		t.Fatalf("investment survived delete")
	}
}

func TestSequencesStartAtOneAndNeverReuse(t *testing.T) {
	manager := newTestManager()
	for want := uint64(1); want <= 3; want++ {
		got, err := manager.CrowdfundNextCampaignID()
		if err != nil {
			t.Fatalf("sequence failed: %v", err)
		}
		if got != want {
			t.Fatalf("expected id %d, got %d", want, got)
		}
	}

	// The donor pass counter is independent.
	tokenID, err := manager.DonorPassNextTokenID()
	if err != nil {
		t.Fatalf("sequence failed: %v", err)
	}
	if tokenID != 1 {
		t.Fatalf("expected token id 1, got %d", tokenID)
	}
}

func TestDonorPassOwnerRoundTrip(t *testing.T) {
	manager := newTestManager()
	owner := testAddr(0x07)
	if err := manager.DonorPassOwnerPut(5, owner); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, ok, err := manager.DonorPassOwnerGet(5)
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if got != owner {
		t.Fatalf("owner lost in round trip")
	}
	_, ok, err = manager.DonorPassOwnerGet(6)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ok {
		t.Fatalf("unknown token must report absent")
	}
}

func TestChainHeightPersistence(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	height, err := manager.ChainHeightGet()
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if height != 0 {
		t.Fatalf("fresh database must report height 0, got %d", height)
	}

	if err := manager.ChainHeightPut(42); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	// A second manager over the same database sees the stored height.
	reopened := NewManager(db)
	height, err = reopened.ChainHeightGet()
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if height != 42 {
		t.Fatalf("expected height 42, got %d", height)
	}
}

func TestGenesisMarker(t *testing.T) {
	manager := newTestManager()
	applied, err := manager.GenesisApplied()
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if applied {
		t.Fatalf("fresh database must not report genesis applied")
	}
	if err := manager.MarkGenesisApplied(); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	applied, err = manager.GenesisApplied()
	if err != nil || !applied {
		t.Fatalf("expected genesis applied, got %v err=%v", applied, err)
	}
}

func TestAccountRoundTrip(t *testing.T) {
	manager := newTestManager()
	addr := testAddr(0x09)

	account, err := manager.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if account != nil {
		t.Fatalf("unfunded account must be nil")
	}

	if err := manager.PutAccount(addr[:], &types.Account{Nonce: 3, Balance: big.NewInt(900)}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	account, err = manager.GetAccount(addr[:])
	if err != nil || account == nil {
		t.Fatalf("get failed: %v", err)
	}
	if account.Nonce != 3 || account.Balance.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("account lost in round trip: %+v", account)
	}
}
