// Package venue abstracts the exchange/liquidity collaborator. Swap
// construction and signature mechanics live behind this interface; the core
// pipeline only needs submit/open/close capabilities.
package venue

import (
	"context"

	"github.com/degenrun/degenrun/internal/domain"
)

// BuyOrder submits a swap of the base currency into a token.
type BuyOrder struct {
	PositionID   string  `json:"position_id"`
	TokenAddress string  `json:"token_address"`
	AmountIn     float64 `json:"amount_in"`
	SlippageBps  int     `json:"slippage_bps"`
}

// SellOrder submits a swap of a token back into the base currency.
type SellOrder struct {
	PositionID   string  `json:"position_id"`
	TokenAddress string  `json:"token_address"`
	Amount       float64 `json:"amount"`
	SlippageBps  int     `json:"slippage_bps"`
}

// SwapReceipt is the confirmed result of a submitted swap.
type SwapReceipt struct {
	OutAmount float64 `json:"out_amount"`
	Signature string  `json:"signature"`
}

// CloseResult reports a closed liquidity position: fees collected, liquidity
// removed, position account closed.
type CloseResult struct {
	TxID               string  `json:"tx_id"`
	WithdrawnLiquidity float64 `json:"withdrawn_liquidity"`
}

// OpenResult reports a freshly opened liquidity position.
type OpenResult struct {
	TxID     string          `json:"tx_id"`
	Position domain.Position `json:"position"`
}

// Venue is the execution collaborator. All methods block on I/O and honor
// ctx cancellation; callers serialize wallet-mutating calls through the job
// worker, not here.
type Venue interface {
	SubmitBuy(ctx context.Context, order BuyOrder) (SwapReceipt, error)
	SubmitSell(ctx context.Context, order SellOrder) (SwapReceipt, error)

	WalletBalance(ctx context.Context) (float64, error)
	TokenBalance(ctx context.Context, address string) (float64, error)

	OpenPositions(ctx context.Context) ([]domain.Position, error)
	GetPosition(ctx context.Context, positionMint string) (domain.Position, error)
	PoolPrice(ctx context.Context, pool string) (float64, error)

	ClosePosition(ctx context.Context, pos domain.Position) (CloseResult, error)
	OpenPosition(ctx context.Context, pool string, bounds domain.PriceBounds, liquidity float64) (OpenResult, error)
}
