package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentName       string `json:"agent_name"`
	AgentID         string `json:"agent_id,omitempty"` // resume an identity across sessions
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	AgentID         string       `json:"agent_id"`
	MarketParams    MarketParams `json:"market_params"`
}

type MarketParams struct {
	MaxShopsPerOwner   int `json:"max_shops_per_owner"`
	MaxListingsPerShop int `json:"max_listings_per_shop"`
}

// Op names carried by OpMsg.Op.
const (
	OpShopCreate       = "SHOP_CREATE"
	OpShopRename       = "SHOP_RENAME"
	OpShopDelete       = "SHOP_DELETE"
	OpShopGet          = "SHOP_GET"
	OpShopList         = "SHOP_LIST"
	OpListingCreate    = "LISTING_CREATE"
	OpListingDelete    = "LISTING_DELETE"
	OpListingGet       = "LISTING_GET"
	OpListingAt        = "LISTING_AT"
	OpListingsNear     = "LISTINGS_NEAR"
	OpListingsExternal = "LISTINGS_EXTERNAL"
	OpSetPrice         = "SET_PRICE"
	OpSetItem          = "SET_ITEM"
	OpSetBuyLimit      = "SET_BUY_LIMIT"
	OpSetExternal      = "SET_EXTERNAL"
	OpBuy              = "BUY"
	OpSell             = "SELL"
	OpCollect          = "COLLECT"
	OpReserve          = "RESERVE"
	OpRelease          = "RELEASE"
	OpSettle           = "SETTLE"
	OpPartnerAdd       = "PARTNER_ADD"
	OpPartnerUpdate    = "PARTNER_UPDATE"
	OpPartnerRemove    = "PARTNER_REMOVE"
)

// OP (client -> server): one market operation. Fields beyond Op are
// op-dependent; unused ones stay at their zero value.
type OpMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"` // caller's correlation id, echoed in RESULT.Ref
	Op              string `json:"op"`

	Shop    string `json:"shop,omitempty"`
	Listing string `json:"listing,omitempty"`
	Name    string `json:"name,omitempty"`

	World string `json:"world,omitempty"`
	X     int    `json:"x,omitempty"`
	Y     int    `json:"y,omitempty"`
	Z     int    `json:"z,omitempty"`

	Direction string  `json:"direction,omitempty"`
	Item      string  `json:"item,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Quantity  int     `json:"quantity,omitempty"`
	Limit     int     `json:"limit,omitempty"`
	Enabled   *bool   `json:"enabled,omitempty"`

	Contract string  `json:"contract,omitempty"`
	Amount   float64 `json:"amount,omitempty"`

	Partner string  `json:"partner,omitempty"`
	Share   float64 `json:"share,omitempty"`

	Region string `json:"region,omitempty"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Ref             string         `json:"ref"`
	OK              bool           `json:"ok"`
	Code            string         `json:"code,omitempty"`
	Message         string         `json:"message,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
}

// EVENT (server -> client): batched notifications.
type EventMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Events          []Event `json:"events"`
}
