package entity

// WalletID identifies a user wallet.
type WalletID string

// Wallet groups per-network addresses and the currencies the user added.
// A missing address for a network means the wallet has no derived key for it.
type Wallet struct {
	ID         WalletID             `json:"id"`
	Name       string               `json:"name"`
	Addresses  map[NetworkID]string `json:"addresses"`
	Currencies []Currency           `json:"currencies"`
}
