package quotes

// tokenPairsResponse is the wrapped form of a DEX Screener pairs response.
type tokenPairsResponse struct {
	SchemaVersion string     `json:"schemaVersion"`
	Pairs         []PairData `json:"pairs"`
}

// PairData contains the part of a DEX Screener trading pair used for quoting.
type PairData struct {
	ChainID     string          `json:"chainId"`
	DexID       string          `json:"dexId"`
	PairAddress string          `json:"pairAddress"`
	BaseToken   DEXToken        `json:"baseToken"`
	QuoteToken  DEXToken        `json:"quoteToken"`
	PriceUsd    string          `json:"priceUsd"`
	PriceChange PairPriceChange `json:"priceChange"`
	Liquidity   *DEXLiquidity   `json:"liquidity"` // null for fresh pairs
}

// DEXToken represents a token in a trading pair.
type DEXToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// DEXLiquidity represents the liquidity information for a pair.
type DEXLiquidity struct {
	Usd float64 `json:"usd"`
}

// PairPriceChange represents price change percentage over different periods.
type PairPriceChange struct {
	H1  float64 `json:"h1"`
	H24 float64 `json:"h24"`
}

func (p *PairData) liquidityUsd() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.Usd
}
