package types

// OrderSubmissionResponse represents the response from POST /order.
type OrderSubmissionResponse struct {
	Success      bool     `json:"success"`
	ErrorMsg     string   `json:"errorMsg"`
	OrderID      string   `json:"orderId"`
	OrderHashes  []string `json:"orderHashes"`
	Status       string   `json:"status"` // matched, live, delayed, unmatched
	TakingAmount string   `json:"takingAmount"`
	MakingAmount string   `json:"makingAmount"`
}

// SignedOrderJSON is a signed order in the format expected by the CLOB API.
// Fields match the EIP-712 order structure after signing.
type SignedOrderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"` // 0x0000... for public orders
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"` // integer base units, USDC has 6 decimals
	TakerAmount   string `json:"takerAmount"` // integer base units, shares have 6 decimals
	Side          string `json:"side"`        // "BUY" or "SELL"
	Expiration    string `json:"expiration"`  // 0 for no expiry
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"` // 0=EOA
	Signature     string `json:"signature"`
}

// OrderSubmissionRequest wraps a signed order with its metadata.
// Owner is the API key, not the maker address.
type OrderSubmissionRequest struct {
	Order     SignedOrderJSON `json:"order"`
	Owner     string          `json:"owner"`
	OrderType string          `json:"orderType"` // GTC
}
