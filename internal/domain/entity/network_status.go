package entity

import "github.com/shopspring/decimal"

// NetworkStatusKind enumerates the states a network can be in for a wallet.
type NetworkStatusKind int

const (
	NetworkStatusLoading NetworkStatusKind = iota
	NetworkStatusMissedDerivation
	NetworkStatusUnreachable
	NetworkStatusNoAccount
	NetworkStatusVerified
)

func (k NetworkStatusKind) String() string {
	switch k {
	case NetworkStatusLoading:
		return "loading"
	case NetworkStatusMissedDerivation:
		return "missed_derivation"
	case NetworkStatusUnreachable:
		return "unreachable"
	case NetworkStatusNoAccount:
		return "no_account"
	case NetworkStatusVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name.
func (k NetworkStatusKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// NetworkStatusValue carries the payload of a network status.
// Address is set for NoAccount and Verified; Amounts and HasPendingTx only for Verified.
type NetworkStatusValue struct {
	Kind         NetworkStatusKind
	Address      string
	Amounts      map[CurrencyID]decimal.Decimal
	HasPendingTx bool
	Reason       string
}

// NetworkStatus is the current on-chain state of one network for one wallet.
type NetworkStatus struct {
	Network Network
	Value   NetworkStatusValue
}

// LoadingNetworkStatus returns the status of a network whose state has not been fetched yet.
func LoadingNetworkStatus(network Network) NetworkStatus {
	return NetworkStatus{Network: network, Value: NetworkStatusValue{Kind: NetworkStatusLoading}}
}

// MissedDerivationNetworkStatus returns the status of a network the wallet has no key for.
func MissedDerivationNetworkStatus(network Network) NetworkStatus {
	return NetworkStatus{Network: network, Value: NetworkStatusValue{Kind: NetworkStatusMissedDerivation}}
}

// UnreachableNetworkStatus returns the status of a network whose fetch failed.
func UnreachableNetworkStatus(network Network, reason string) NetworkStatus {
	return NetworkStatus{Network: network, Value: NetworkStatusValue{Kind: NetworkStatusUnreachable, Reason: reason}}
}

// NoAccountNetworkStatus returns the status of a valid address without on-chain history.
func NoAccountNetworkStatus(network Network, address string) NetworkStatus {
	return NetworkStatus{Network: network, Value: NetworkStatusValue{Kind: NetworkStatusNoAccount, Address: address}}
}

// VerifiedNetworkStatus returns the status of an account with known balances.
func VerifiedNetworkStatus(network Network, address string, amounts map[CurrencyID]decimal.Decimal, hasPendingTx bool) NetworkStatus {
	return NetworkStatus{
		Network: network,
		Value: NetworkStatusValue{
			Kind:         NetworkStatusVerified,
			Address:      address,
			Amounts:      amounts,
			HasPendingTx: hasPendingTx,
		},
	}
}
