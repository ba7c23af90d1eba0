package types

import "math/big"

// Account holds the fungible-asset balance tracked for a single principal.
// Every balance mutation flows through the bank transfer primitive so the
// total supply stays conserved across escrow operations.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return &clone
}
