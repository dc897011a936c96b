package dexscreener

// Pair mirrors the DexScreener pair schema; only fields the engine reads are modeled.
type Pair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`

	BaseToken  PairToken `json:"baseToken"`
	QuoteToken PairToken `json:"quoteToken"`

	PriceUsd string `json:"priceUsd"`

	Volume      PairWindow    `json:"volume"`
	PriceChange PairWindow    `json:"priceChange"`
	Liquidity   PairLiquidity `json:"liquidity"`

	// Unix milliseconds.
	PairCreatedAt int64 `json:"pairCreatedAt"`
}

type PairToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type PairWindow struct {
	H24 float64 `json:"h24"`
	H6  float64 `json:"h6"`
	H1  float64 `json:"h1"`
}

type PairLiquidity struct {
	Usd   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}
