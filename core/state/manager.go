package state

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"clearfund/core/types"
	"clearfund/native/crowdfund"
	"clearfund/storage"
)

var errNilDatabase = errors.New("state: database not configured")

const (
	campaignPrefix   = "crowdfund/campaign/"
	investmentPrefix = "crowdfund/investment/"
	campaignSeqKey   = "crowdfund/next-campaign-id"
	donorPassSeqKey  = "donorpass/next-token-id"
	donorPassPrefix  = "donorpass/owner/"
	accountPrefix    = "account/"
	chainHeightKey   = "chain/height"
	genesisKey       = "chain/genesis-applied"
)

// Manager provides the typed state accessors the native modules need on top
// of a raw key-value database. Records are stored JSON-encoded under
// module-scoped key prefixes.
type Manager struct {
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func campaignKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", campaignPrefix, id))
}

func investmentKey(campaignID uint64, investor [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%d/%s", investmentPrefix, campaignID, hex.EncodeToString(investor[:])))
}

func donorPassKey(tokenID uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", donorPassPrefix, tokenID))
}

func accountKey(addr []byte) []byte {
	return []byte(accountPrefix + hex.EncodeToString(addr))
}

func (m *Manager) getJSON(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, errNilDatabase
	}
	raw, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

// nextSequence atomically hands out the next identifier for the supplied
// counter key. Sequences start at one and never reuse a value.
func (m *Manager) nextSequence(key string) (uint64, error) {
	if m == nil || m.db == nil {
		return 0, errNilDatabase
	}
	var next uint64 = 1
	raw, err := m.db.Get([]byte(key))
	switch {
	case err == nil:
		if len(raw) != 8 {
			return 0, fmt.Errorf("state: corrupt sequence %q", key)
		}
		next = binary.BigEndian.Uint64(raw)
	case errors.Is(err, storage.ErrKeyNotFound):
	default:
		return 0, err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next+1)
	if err := m.db.Put([]byte(key), buf); err != nil {
		return 0, err
	}
	return next, nil
}

// CrowdfundCampaignGet loads a campaign record by identifier.
func (m *Manager) CrowdfundCampaignGet(id uint64) (*crowdfund.Campaign, bool, error) {
	campaign := new(crowdfund.Campaign)
	ok, err := m.getJSON(campaignKey(id), campaign)
	if err != nil || !ok {
		return nil, false, err
	}
	return campaign, true, nil
}

// CrowdfundCampaignPut stores a campaign record.
func (m *Manager) CrowdfundCampaignPut(c *crowdfund.Campaign) error {
	if c == nil {
		return errors.New("state: nil campaign")
	}
	return m.putJSON(campaignKey(c.ID), c)
}

// CrowdfundCampaignDelete removes a campaign record outright.
func (m *Manager) CrowdfundCampaignDelete(id uint64) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	return m.db.Delete(campaignKey(id))
}

// CrowdfundNextCampaignID allocates the next sequential campaign identifier.
func (m *Manager) CrowdfundNextCampaignID() (uint64, error) {
	return m.nextSequence(campaignSeqKey)
}

// CrowdfundInvestmentGet loads the investment record for a campaign/investor
// pair.
func (m *Manager) CrowdfundInvestmentGet(campaignID uint64, investor [20]byte) (*crowdfund.Investment, bool, error) {
	investment := new(crowdfund.Investment)
	ok, err := m.getJSON(investmentKey(campaignID, investor), investment)
	if err != nil || !ok {
		return nil, false, err
	}
	return investment, true, nil
}

// CrowdfundInvestmentPut stores an investment record.
func (m *Manager) CrowdfundInvestmentPut(inv *crowdfund.Investment) error {
	if inv == nil {
		return errors.New("state: nil investment")
	}
	return m.putJSON(investmentKey(inv.CampaignID, inv.Investor), inv)
}

// CrowdfundInvestmentDelete removes an investment record outright.
func (m *Manager) CrowdfundInvestmentDelete(campaignID uint64, investor [20]byte) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	return m.db.Delete(investmentKey(campaignID, investor))
}

// DonorPassNextTokenID allocates the next sequential donor pass identifier.
func (m *Manager) DonorPassNextTokenID() (uint64, error) {
	return m.nextSequence(donorPassSeqKey)
}

// DonorPassOwnerPut records the owner of a minted donor pass.
func (m *Manager) DonorPassOwnerPut(tokenID uint64, owner [20]byte) error {
	return m.putJSON(donorPassKey(tokenID), owner[:])
}

// DonorPassOwnerGet reports the owner of a minted donor pass.
func (m *Manager) DonorPassOwnerGet(tokenID uint64) ([20]byte, bool, error) {
	var raw []byte
	ok, err := m.getJSON(donorPassKey(tokenID), &raw)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	if len(raw) != 20 {
		return [20]byte{}, false, fmt.Errorf("state: corrupt donor pass owner for token %d", tokenID)
	}
	var owner [20]byte
	copy(owner[:], raw)
	return owner, true, nil
}

// ChainHeightGet loads the persisted block height, zero when never stored.
func (m *Manager) ChainHeightGet() (uint64, error) {
	if m == nil || m.db == nil {
		return 0, errNilDatabase
	}
	raw, err := m.db.Get([]byte(chainHeightKey))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("state: corrupt chain height")
	}
	return binary.BigEndian.Uint64(raw), nil
}

// ChainHeightPut persists the current block height.
func (m *Manager) ChainHeightPut(height uint64) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, height)
	return m.db.Put([]byte(chainHeightKey), buf)
}

// GenesisApplied reports whether the genesis allocations ran already.
func (m *Manager) GenesisApplied() (bool, error) {
	if m == nil || m.db == nil {
		return false, errNilDatabase
	}
	return m.db.Has([]byte(genesisKey))
}

// MarkGenesisApplied records that genesis allocations ran.
func (m *Manager) MarkGenesisApplied() error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	return m.db.Put([]byte(genesisKey), []byte{1})
}

// GetAccount loads the account for an address, returning nil when the address
// has never been funded.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	account := new(types.Account)
	ok, err := m.getJSON(accountKey(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return account, nil
}

// PutAccount stores the account for an address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return errors.New("state: nil account")
	}
	return m.putJSON(accountKey(addr), account)
}
