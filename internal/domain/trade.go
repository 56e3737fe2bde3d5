package domain

// TradeState tracks a single trade attempt through the execution state
// machine.
type TradeState string

const (
	TradeReceived  TradeState = "RECEIVED"
	TradeValidated TradeState = "VALIDATED"
	TradeSized     TradeState = "SIZED"
	TradeQuoted    TradeState = "QUOTED"
	TradeSubmitted TradeState = "SUBMITTED"
	TradeConfirmed TradeState = "CONFIRMED"
	TradeFailed    TradeState = "FAILED"
)

// BuySignalMessage requests a buy. PositionID is caller-generated and unique
// per trade attempt; it is the idempotency key at the job layer. The message
// is never mutated after enqueue except to attach ExpectedOutAmount as a
// pre-trade estimate.
type BuySignalMessage struct {
	PositionID        string  `json:"position_id"`
	TokenAddress      string  `json:"token_address"`
	EntityID          string  `json:"entity_id"`
	TradeAmount       float64 `json:"trade_amount,omitempty"`
	ExpectedOutAmount float64 `json:"expected_out_amount,omitempty"`
}

// SellSignalMessage requests a sell of an existing holding.
type SellSignalMessage struct {
	PositionID        string  `json:"position_id"`
	TokenAddress      string  `json:"token_address"`
	EntityID          string  `json:"entity_id"`
	Amount            float64 `json:"amount"`
	CurrentBalance    float64 `json:"current_balance"`
	ExpectedOutAmount float64 `json:"expected_out_amount,omitempty"`
}

// TradeResult is the structured outcome of one execution attempt. Success
// false with a non-empty Error is a terminal rejection unless the handler
// chooses to retry.
type TradeResult struct {
	Success   bool       `json:"success"`
	State     TradeState `json:"state"`
	Error     string     `json:"error,omitempty"`
	OutAmount float64    `json:"out_amount,omitempty"`
	Signature string     `json:"signature,omitempty"`
}

// Rejected builds a terminal failure result in the given state.
func Rejected(state TradeState, reason string) TradeResult {
	return TradeResult{Success: false, State: state, Error: reason}
}
