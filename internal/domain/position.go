package domain

// Position is a transient view of a liquidity position owned by the venue.
// The rebalancer fetches it fresh on every check and must never reuse a view
// across retries: price moves between attempts and stale bounds risk opening
// at an already-invalid range.
type Position struct {
	Pool                  string  `json:"pool"`
	PositionMint          string  `json:"position_mint"`
	InRange               bool    `json:"in_range"`
	DistanceFromTargetBps int     `json:"distance_from_target_bps"`
	WidthBps              int     `json:"width_bps"`
	Liquidity             float64 `json:"liquidity"`
}

// PriceBounds is a target range derived from the current pool price and the
// position's configured width.
type PriceBounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// BoundsAround centers a range of widthBps basis points on price.
func BoundsAround(price float64, widthBps int) PriceBounds {
	half := price * float64(widthBps) / 2 / 10000
	return PriceBounds{Lower: price - half, Upper: price + half}
}

// RebalanceReport is returned after a successful close-then-reopen cycle.
type RebalanceReport struct {
	OldPosition Position `json:"old_position"`
	NewPosition Position `json:"new_position"`
	CloseTxID   string   `json:"close_tx_id"`
	OpenTxID    string   `json:"open_tx_id"`
}
