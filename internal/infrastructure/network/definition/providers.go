package networkdefinition

import (
	"strings"

	"currency_status/internal/domain/entity"
	"currency_status/internal/infrastructure/configloader"

	"go.uber.org/zap"
)

const evmDerivationPath = "m/44'/60'/0'/0/0"

// Registry implements port.NetworkProvider over the built-in EVM networks.
type Registry struct {
	logger   *zap.Logger
	networks []entity.Network
	byID     map[entity.NetworkID]entity.Network
}

// Builtin returns the predefined networks, in display order.
func Builtin() []entity.Network {
	return []entity.Network{
		{
			ID:                        "ethereum",
			Name:                      "Ethereum Mainnet",
			ChainID:                   1,
			NativeSymbol:              "ETH",
			PrimaryRPCURL:             "https://ethereum-rpc.publicnode.com",
			FallbackRPCURLs:           []string{"https://rpc.ankr.com/eth", "https://ethereum.publicnode.com"},
			BlockExplorerURL:          "https://etherscan.io",
			DEXScreenerChainID:        "ethereum",
			WrappedNativeTokenAddress: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		},
		{
			ID:                        "bsc",
			Name:                      "BNB Smart Chain",
			ChainID:                   56,
			NativeSymbol:              "BNB",
			PrimaryRPCURL:             "https://1rpc.io/bnb",
			FallbackRPCURLs:           []string{"https://bsc-dataseed2.binance.org/", "https://bsc.publicnode.com"},
			BlockExplorerURL:          "https://bscscan.com",
			DEXScreenerChainID:        "bsc",
			WrappedNativeTokenAddress: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c",
		},
		{
			ID:                        "polygon",
			Name:                      "Polygon PoS",
			ChainID:                   137,
			NativeSymbol:              "POL",
			PrimaryRPCURL:             "https://polygon-rpc.com/",
			FallbackRPCURLs:           []string{"https://rpc.ankr.com/polygon", "https://polygon.publicnode.com"},
			BlockExplorerURL:          "https://polygonscan.com",
			DEXScreenerChainID:        "polygon",
			WrappedNativeTokenAddress: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270",
		},
		{
			ID:                        "arbitrum",
			Name:                      "Arbitrum One",
			ChainID:                   42161,
			NativeSymbol:              "ETH",
			PrimaryRPCURL:             "https://arb1.arbitrum.io/rpc",
			FallbackRPCURLs:           []string{"https://arbitrum.llamarpc.com", "https://arbitrum.publicnode.com"},
			BlockExplorerURL:          "https://arbiscan.io",
			DEXScreenerChainID:        "arbitrum",
			WrappedNativeTokenAddress: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
		},
		{
			ID:                        "avalanche",
			Name:                      "Avalanche C-Chain",
			ChainID:                   43114,
			NativeSymbol:              "AVAX",
			PrimaryRPCURL:             "https://api.avax.network/ext/bc/C/rpc",
			FallbackRPCURLs:           []string{"https://avalanche.public-rpc.com", "https://rpc.ankr.com/avalanche"},
			BlockExplorerURL:          "https://snowtrace.io",
			DEXScreenerChainID:        "avalanche",
			WrappedNativeTokenAddress: "0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7",
		},
		{
			ID:                        "base",
			Name:                      "Base Mainnet",
			ChainID:                   8453,
			NativeSymbol:              "ETH",
			PrimaryRPCURL:             "https://1rpc.io/base",
			FallbackRPCURLs:           []string{"https://base.publicnode.com", "https://base.llamarpc.com"},
			BlockExplorerURL:          "https://basescan.org",
			DEXScreenerChainID:        "base",
			WrappedNativeTokenAddress: "0x4200000000000000000000000000000000000006",
		},
		{
			ID:                        "optimism",
			Name:                      "OP Mainnet",
			ChainID:                   10,
			NativeSymbol:              "ETH",
			PrimaryRPCURL:             "https://optimism.publicnode.com",
			FallbackRPCURLs:           []string{"https://rpc.ankr.com/optimism"},
			BlockExplorerURL:          "https://optimistic.etherscan.io",
			DEXScreenerChainID:        "optimism",
			WrappedNativeTokenAddress: "0x4200000000000000000000000000000000000006",
		},
		{
			ID:                        "gnosis",
			Name:                      "Gnosis Chain",
			ChainID:                   100,
			NativeSymbol:              "xDAI",
			PrimaryRPCURL:             "https://rpc.ankr.com/gnosis",
			FallbackRPCURLs:           []string{"https://gnosis.publicnode.com"},
			BlockExplorerURL:          "https://gnosisscan.io",
			DEXScreenerChainID:        "gnosis",
			WrappedNativeTokenAddress: "0xe91D153E0b41518A2Ce8DD3D7944Fa863463A97d",
		},
		{
			ID:                        "linea",
			Name:                      "Linea Mainnet",
			ChainID:                   59144,
			NativeSymbol:              "ETH",
			PrimaryRPCURL:             "https://rpc.linea.build",
			BlockExplorerURL:          "https://lineascan.build",
			DEXScreenerChainID:        "linea",
			WrappedNativeTokenAddress: "0xe5D7C2a44FfDDf6b295A15c148167daaAf5Cf34f",
		},
		{
			ID:                        "scroll",
			Name:                      "Scroll",
			ChainID:                   534352,
			NativeSymbol:              "ETH",
			PrimaryRPCURL:             "https://rpc.scroll.io",
			BlockExplorerURL:          "https://scrollscan.com",
			DEXScreenerChainID:        "scroll",
			WrappedNativeTokenAddress: "0x5300000000000000000000000000000000000004",
		},
		{
			ID:                        "zksync",
			Name:                      "zkSync Era Mainnet",
			ChainID:                   324,
			NativeSymbol:              "ETH",
			PrimaryRPCURL:             "https://mainnet.era.zksync.io",
			BlockExplorerURL:          "https://explorer.zksync.io",
			DEXScreenerChainID:        "zksync",
			WrappedNativeTokenAddress: "0x5AEa5775959fBC2557Cc8789bC1bf90A239D9a91",
		},
	}
}

// NewRegistry creates a Registry from the built-in networks with overrides applied.
// Overrides for unknown ids are ignored with a warning.
func NewRegistry(overrides []configloader.NetworkOverride, logger *zap.Logger) *Registry {
	r := &Registry{
		logger: logger.Named("NetworkRegistry"),
		byID:   make(map[entity.NetworkID]entity.Network),
	}

	byOverride := make(map[entity.NetworkID]configloader.NetworkOverride, len(overrides))
	for _, o := range overrides {
		byOverride[entity.NetworkID(strings.ToLower(o.ID))] = o
	}

	for _, n := range Builtin() {
		n.Decimals = 18
		n.DerivationPath = evmDerivationPath
		if o, ok := byOverride[n.ID]; ok {
			delete(byOverride, n.ID)
			if o.Disabled {
				r.logger.Info("Network disabled by configuration", zap.String("network", string(n.ID)))
				continue
			}
			if o.RPCURL != "" {
				n.PrimaryRPCURL = o.RPCURL
			}
			if len(o.FallbackRPCURLs) > 0 {
				n.FallbackRPCURLs = o.FallbackRPCURLs
			}
			if o.DEXScreenerChainID != "" {
				n.DEXScreenerChainID = o.DEXScreenerChainID
			}
		}
		r.networks = append(r.networks, n)
		r.byID[n.ID] = n
	}

	for id := range byOverride {
		r.logger.Warn("Override references an unknown network, skipping", zap.String("network", string(id)))
	}

	r.logger.Info("Network registry initialized", zap.Int("networks", len(r.networks)))
	return r
}

// AllNetworks returns the active networks.
func (r *Registry) AllNetworks() []entity.Network {
	out := make([]entity.Network, len(r.networks))
	copy(out, r.networks)
	return out
}

// GetNetwork returns an active network by id.
func (r *Registry) GetNetwork(id entity.NetworkID) (entity.Network, bool) {
	n, ok := r.byID[id]
	return n, ok
}

// GetNetworkByChainID returns an active network by its EVM chain id.
func (r *Registry) GetNetworkByChainID(chainID uint64) (entity.Network, bool) {
	for _, n := range r.networks {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return entity.Network{}, false
}
