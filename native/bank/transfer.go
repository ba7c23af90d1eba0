package bank

import (
	"errors"
	"math/big"

	"clearfund/core/types"
)

var (
	// ErrInsufficientBalance is returned when the sender cannot cover the
	// transfer amount.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrNegativeAmount is returned for transfers below zero.
	ErrNegativeAmount = errors.New("bank: negative transfer amount")

	errNilState = errors.New("bank: state not configured")
)

// AccountState is the minimal surface the transfer primitive needs from the
// surrounding state implementation.
type AccountState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

// Transfer atomically moves amount from one principal to another. The debit is
// validated before either account is written, so a failed transfer leaves both
// balances untouched. A zero amount is a no-op.
func Transfer(state AccountState, from, to [20]byte, amount *big.Int) error {
	if state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if from == to {
		return nil
	}
	fromAcc, err := state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return state.PutAccount(to[:], toAcc)
}
