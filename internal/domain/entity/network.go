package entity

// NetworkID identifies a blockchain network (e.g. "ethereum", "bsc").
type NetworkID string

// Network holds the configuration for a specific blockchain network.
// This structure is defined at the domain level to be used across application and infrastructure layers.
type Network struct {
	ID                        NetworkID `json:"id" yaml:"id"`
	Name                      string    `json:"name" yaml:"name"`
	DerivationPath            string    `json:"derivationPath,omitempty" yaml:"derivationPath,omitempty"`
	ChainID                   uint64    `json:"chainId" yaml:"chainId"`
	NativeSymbol              string    `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals                  uint8     `json:"decimals" yaml:"decimals"`
	PrimaryRPCURL             string    `json:"-" yaml:"primaryRpcUrl"`
	FallbackRPCURLs           []string  `json:"-" yaml:"fallbackRpcUrls"`
	BlockExplorerURL          string    `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
	DEXScreenerChainID        string    `json:"-" yaml:"dexScreenerChainId"`
	WrappedNativeTokenAddress string    `json:"-" yaml:"wrappedNativeTokenAddress"`
}
