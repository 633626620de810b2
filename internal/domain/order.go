package domain

// SellListing is one of the trader's own outstanding sell listings.
// BuyerPrice is the price the buyer pays, which is what appears in the
// order-book histogram, so all pricing comparisons use it rather than the
// seller's net proceeds.
type SellListing struct {
	ListingID string
	ItemName  string
	// BuyerPrice is the listed price as seen by buyers.
	BuyerPrice float64
}

// BuyOrder is one of the trader's own outstanding buy orders. The
// marketplace keeps at most one buy order per item per account.
type BuyOrder struct {
	OrderID  string
	ItemName string
	Price    float64
	Quantity int
}

// Side tags which side of the book a recommendation applies to.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// PriceRecommendation is the pricing engine's verdict for one item and one
// side. When Actionable is false the caller must skip the item this cycle;
// Price is meaningless in that case.
type PriceRecommendation struct {
	ItemName   string
	Side       Side
	Price      float64
	Actionable bool
}

// OrderResult is the outcome of placing or cancelling an order on the
// marketplace. Some operations return an identifier, others only a success
// flag; NeedsConfirmation is set when the marketplace requires a mobile
// confirmation before the order goes live.
type OrderResult struct {
	Success           bool
	OrderID           string
	NeedsConfirmation bool
	Message           string
}

// Confirmation is one pending mobile confirmation guarding a market action.
// Nonce is the per-confirmation key the accept endpoint requires.
type Confirmation struct {
	ID        string
	Nonce     string
	CreatorID string
}

// InventoryAsset is a single sellable asset in the account inventory.
type InventoryAsset struct {
	AssetID    string
	ItemName   string
	Marketable bool
}
