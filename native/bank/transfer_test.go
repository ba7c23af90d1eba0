package bank

import (
	"errors"
	"math/big"
	"testing"

	"clearfund/core/types"
)

type memState struct {
	accounts map[string]*types.Account
}

func newMemState() *memState {
	return &memState{accounts: make(map[string]*types.Account)}
}

func (m *memState) GetAccount(addr []byte) (*types.Account, error) {
	if acc, ok := m.accounts[string(addr)]; ok {
		return acc.Clone(), nil
	}
	return nil, nil
}

func (m *memState) PutAccount(addr []byte, account *types.Account) error {
	m.accounts[string(addr)] = account.Clone()
	return nil
}

func (m *memState) balance(addr [20]byte) *big.Int {
	if acc, ok := m.accounts[string(addr[:])]; ok && acc.Balance != nil {
		return new(big.Int).Set(acc.Balance)
	}
	return big.NewInt(0)
}

func testAddr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func TestTransferMovesFunds(t *testing.T) {
	state := newMemState()
	from := testAddr(0x01)
	to := testAddr(0x02)
	state.accounts[string(from[:])] = &types.Account{Balance: big.NewInt(1000)}

	if err := Transfer(state, from, to, big.NewInt(400)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got := state.balance(from); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("sender balance %s", got)
	}
	if got := state.balance(to); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("recipient balance %s", got)
	}
}

func TestTransferInsufficientBalanceLeavesStateUntouched(t *testing.T) {
	state := newMemState()
	from := testAddr(0x01)
	to := testAddr(0x02)
	state.accounts[string(from[:])] = &types.Account{Balance: big.NewInt(100)}

	err := Transfer(state, from, to, big.NewInt(400))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if got := state.balance(from); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("sender balance mutated: %s", got)
	}
	if got := state.balance(to); got.Sign() != 0 {
		t.Fatalf("recipient credited on failure: %s", got)
	}
}

func TestTransferFromUnfundedAccount(t *testing.T) {
	state := newMemState()
	err := Transfer(state, testAddr(0x01), testAddr(0x02), big.NewInt(1))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestTransferZeroAndNilAmountsAreNoOps(t *testing.T) {
	state := newMemState()
	from := testAddr(0x01)
	if err := Transfer(state, from, testAddr(0x02), big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer failed: %v", err)
	}
	if err := Transfer(state, from, testAddr(0x02), nil); err != nil {
		t.Fatalf("nil transfer failed: %v", err)
	}
	if len(state.accounts) != 0 {
		t.Fatalf("no-op transfers must not create accounts")
	}
}

func TestTransferRejectsNegativeAmounts(t *testing.T) {
	state := newMemState()
	err := Transfer(state, testAddr(0x01), testAddr(0x02), big.NewInt(-5))
	if !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected negative amount error, got %v", err)
	}
}

func TestTransferToSelfKeepsBalance(t *testing.T) {
	state := newMemState()
	self := testAddr(0x01)
	state.accounts[string(self[:])] = &types.Account{Balance: big.NewInt(1000)}
	if err := Transfer(state, self, self, big.NewInt(400)); err != nil {
		t.Fatalf("self transfer failed: %v", err)
	}
	if got := state.balance(self); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("self transfer changed balance: %s", got)
	}
}
