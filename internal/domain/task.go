package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// JobType tags the payload variant carried by a task. Wallet-mutating types
// (buy, sell, wallet sync) are dispatched with concurrency 1.
type JobType string

const (
	JobExecuteBuy        JobType = "EXECUTE_BUY"
	JobExecuteSell       JobType = "EXECUTE_SELL"
	JobGenerateBuySignal JobType = "GENERATE_BUY_SIGNAL"
	JobSyncWallet        JobType = "SYNC_WALLET"
)

// ErrUnknownJobType marks a payload whose tag matches no known variant.
// Such jobs fail immediately and are never retried.
var ErrUnknownJobType = errors.New("unknown job type")

// Task is a unit of scheduled or on-demand work. ID is the identity; tasks
// are deleted after terminal completion.
type Task struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Tags      []string        `json:"tags"`
	Metadata  json.RawMessage `json:"metadata"`
	Schedule  string          `json:"schedule,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// BuyPayload is the EXECUTE_BUY job body.
type BuyPayload struct {
	Signal      BuySignalMessage `json:"signal"`
	TradeAmount float64          `json:"trade_amount,omitempty"`
}

// SellPayload is the EXECUTE_SELL job body.
type SellPayload struct {
	Signal SellSignalMessage `json:"signal"`
}

// GenerateSignalPayload is the GENERATE_BUY_SIGNAL job body (empty).
type GenerateSignalPayload struct{}

// SyncWalletPayload is the SYNC_WALLET job body (empty).
type SyncWalletPayload struct{}

// DecodeJobPayload decodes task metadata into the typed variant for jt.
// Unknown tags are rejected at decode time rather than at dispatch.
func DecodeJobPayload(jt JobType, metadata json.RawMessage) (interface{}, error) {
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}
	switch jt {
	case JobExecuteBuy:
		var p BuyPayload
		if err := json.Unmarshal(metadata, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", jt, err)
		}
		return p, nil
	case JobExecuteSell:
		var p SellPayload
		if err := json.Unmarshal(metadata, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", jt, err)
		}
		return p, nil
	case JobGenerateBuySignal:
		return GenerateSignalPayload{}, nil
	case JobSyncWallet:
		return SyncWalletPayload{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jt)
	}
}

// IsWalletMutating reports whether jobs of this type touch the shared wallet
// and therefore must run on the single-concurrency lane.
func (jt JobType) IsWalletMutating() bool {
	switch jt {
	case JobExecuteBuy, JobExecuteSell, JobSyncWallet:
		return true
	}
	return false
}
