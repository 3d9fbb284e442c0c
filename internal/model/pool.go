package model

// PoolRecord is the storage representation of a constant-product pool.
// Amounts are base-10 strings of unsigned 256-bit integers.
type PoolRecord struct {
	Key         string `json:"key"`
	Asset0      string `json:"asset0"`
	Asset1      string `json:"asset1"`
	Reserve0    string `json:"reserve0"`
	Reserve1    string `json:"reserve1"`
	TotalShares string `json:"total_shares"`
}

// BalanceRecord stores one account's holdings of one asset, plus the amount
// the account has approved the pool custody to pull.
type BalanceRecord struct {
	Asset     string `json:"asset"`
	Account   string `json:"account"`
	Balance   string `json:"balance"`
	Allowance string `json:"allowance,omitempty"`
}

// ShareRecord stores a liquidity receipt balance. Class is the pair key of
// the pool that issued the shares.
type ShareRecord struct {
	Class  string `json:"class"`
	Holder string `json:"holder"`
	Amount string `json:"amount"`
}

// Snapshot is a full copy of engine state at a replay position.
type Snapshot struct {
	LastSeq   uint64          `json:"last_seq"`
	UpdatedAt string          `json:"updated_at"`
	Custody   string          `json:"custody"`
	Pools     []PoolRecord    `json:"pools"`
	Balances  []BalanceRecord `json:"balances"`
	Shares    []ShareRecord   `json:"shares"`
}
