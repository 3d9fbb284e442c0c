package model

// Operation kinds accepted in a replay stream.
const (
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpSwap            = "swap"
	OpSpotPrice       = "spot_price"
)

// OperationRecord is one line of a replay stream. Only the fields used by Op
// are read; amounts are base-10 strings.
type OperationRecord struct {
	Seq       uint64 `json:"seq"`
	Op        string `json:"op"`
	Timestamp uint64 `json:"timestamp,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	// Deadline of zero means the operation never expires.
	Deadline uint64 `json:"deadline,omitempty"`

	AssetA         string `json:"asset_a,omitempty"`
	AssetB         string `json:"asset_b,omitempty"`
	AmountADesired string `json:"amount_a_desired,omitempty"`
	AmountBDesired string `json:"amount_b_desired,omitempty"`
	AmountAMin     string `json:"amount_a_min,omitempty"`
	AmountBMin     string `json:"amount_b_min,omitempty"`
	Shares         string `json:"shares,omitempty"`

	AmountIn     string   `json:"amount_in,omitempty"`
	AmountOutMin string   `json:"amount_out_min,omitempty"`
	Path         []string `json:"path,omitempty"`

	Base  string `json:"base,omitempty"`
	Quote string `json:"quote,omitempty"`
}

// Result statuses.
const (
	StatusOK       = "ok"
	StatusRejected = "rejected"
)

// ResultRecord reports the outcome of one replayed operation.
type ResultRecord struct {
	Seq       uint64 `json:"seq"`
	Op        string `json:"op"`
	PairKey   string `json:"pair_key,omitempty"`
	Status    string `json:"status"`
	Codespace string `json:"codespace,omitempty"`
	Code      uint32 `json:"code,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Error     string `json:"error,omitempty"`

	AmountA   string `json:"amount_a,omitempty"`
	AmountB   string `json:"amount_b,omitempty"`
	Shares    string `json:"shares,omitempty"`
	AmountIn  string `json:"amount_in,omitempty"`
	AmountOut string `json:"amount_out,omitempty"`
	Price     string `json:"price,omitempty"`

	Reserve0    string `json:"reserve0,omitempty"`
	Reserve1    string `json:"reserve1,omitempty"`
	TotalShares string `json:"total_shares,omitempty"`
	AppliedAt   string `json:"applied_at"`
}
