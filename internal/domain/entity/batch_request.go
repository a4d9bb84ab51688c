package entity

import "math/big"

// AccountRequestType defines the type of a single call inside an account batch request.
type AccountRequestType int

const (
	// NativeBalanceRequest requests the native balance of a wallet.
	NativeBalanceRequest AccountRequestType = iota
	// TokenBalanceRequest requests the balance of a specific token for a wallet.
	TokenBalanceRequest
	// NonceRequest requests the confirmed transaction count of a wallet.
	NonceRequest
	// PendingNonceRequest requests the transaction count including the mempool.
	PendingNonceRequest
)

// ZeroAddress represents the Ethereum zero address.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// AccountRequestItem represents a single item in a batch request for an account.
type AccountRequestItem struct {
	CurrencyID    CurrencyID
	Type          AccountRequestType
	WalletAddress string
	TokenAddress  string
	TokenDecimals uint8
}

// AccountResultItem represents the result of a single request from a batch.
type AccountResultItem struct {
	CurrencyID CurrencyID
	Type       AccountRequestType
	Decimals   uint8
	Value      *big.Int
	Error      error
}
