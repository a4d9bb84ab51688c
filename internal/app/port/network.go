package port

import (
	"context"

	"currency_status/internal/domain/entity"
)

// NetworkProvider resolves network reference data.
type NetworkProvider interface {
	// AllNetworks returns all known networks.
	AllNetworks() []entity.Network

	// GetNetwork returns the network with the given id and true, or false if unknown.
	GetNetwork(id entity.NetworkID) (entity.Network, bool)
}

// WalletProvider gives access to wallets and their derived addresses.
type WalletProvider interface {
	// Address returns the wallet address on a network, false if the wallet has no key for it.
	Address(walletID entity.WalletID, networkID entity.NetworkID) (string, bool)
}

// BlockchainClient defines the interface for interacting with a blockchain network.
type BlockchainClient interface {
	// GetAccount executes all requests of one account in a single round trip.
	GetAccount(ctx context.Context, requests []entity.AccountRequestItem) ([]entity.AccountResultItem, error)

	// Network returns the network this client talks to.
	Network() entity.Network
}

// BlockchainClientProvider defines the interface for providing blockchain clients.
type BlockchainClientProvider interface {
	GetClient(network entity.Network) (BlockchainClient, error)
}
