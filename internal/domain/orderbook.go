package domain

// OrderDepth is one product's resting book for a tick. Buy quantities are
// positive; sell quantities are negative by exchange convention, so the
// available volume at an ask is the magnitude of its quantity.
type OrderDepth struct {
	BuyOrders  map[int]int `json:"buy_orders"`
	SellOrders map[int]int `json:"sell_orders"`
}

// Listing describes a tradable symbol.
type Listing struct {
	Symbol       string `json:"symbol"`
	Product      string `json:"product"`
	Denomination string `json:"denomination"`
}

// Trade is an executed trade reported by the exchange.
type Trade struct {
	Symbol    string `json:"symbol"`
	Price     int    `json:"price"`
	Quantity  int    `json:"quantity"`
	Buyer     string `json:"buyer,omitempty"`
	Seller    string `json:"seller,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ConversionObservation carries the exchange's conversion quote for one
// product. The decision core passes it through without interpreting it.
type ConversionObservation struct {
	BidPrice      float64 `json:"bidPrice"`
	AskPrice      float64 `json:"askPrice"`
	TransportFees float64 `json:"transportFees"`
	ExportTariff  float64 `json:"exportTariff"`
	ImportTariff  float64 `json:"importTariff"`
	SugarPrice    float64 `json:"sugarPrice"`
	SunlightIndex float64 `json:"sunlightIndex"`
}

// Observation is auxiliary per-tick data published alongside the books.
type Observation struct {
	PlainValueObservations map[string]float64               `json:"plainValueObservations"`
	ConversionObservations map[string]ConversionObservation `json:"conversionObservations"`
}

// TradingState is the complete snapshot handed to the trader on every tick.
type TradingState struct {
	TraderData   string                `json:"traderData"`
	Timestamp    int64                 `json:"timestamp"`
	Listings     map[string]Listing    `json:"listings"`
	OrderDepths  map[string]OrderDepth `json:"order_depths"`
	OwnTrades    map[string][]Trade    `json:"own_trades"`
	MarketTrades map[string][]Trade    `json:"market_trades"`
	Position     map[string]int        `json:"position"`
	Observations Observation           `json:"observations"`
}
