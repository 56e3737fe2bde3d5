// Package execution drives a trade through the state machine
// RECEIVED → VALIDATED → SIZED → QUOTED → SUBMITTED → CONFIRMED,
// with FAILED reachable from every step. All checks that can reject a trade
// run before any venue call.
package execution

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/degenrun/degenrun/internal/config"
	"github.com/degenrun/degenrun/internal/domain"
	"github.com/degenrun/degenrun/internal/domain/gates"
	"github.com/degenrun/degenrun/internal/infrastructure/providers"
	"github.com/degenrun/degenrun/internal/infrastructure/venue"
	"github.com/degenrun/degenrun/internal/persistence"
)

// baseCurrencyMint is the wallet's base asset; buys spend it, sells receive it.
const baseCurrencyMint = "So11111111111111111111111111111111111111112"

// SlippageRecorder receives realized slippage for confirmed trades.
type SlippageRecorder interface {
	RecordSlippage(ctx context.Context, rec persistence.SlippageRecord)
}

// MarketSource provides the market data backing the slippage model. The
// signal aggregator satisfies this.
type MarketSource interface {
	GetTokenMarketData(ctx context.Context, address string) (domain.MarketData, error)
}

// Service executes buy and sell signals against the venue.
type Service struct {
	cfg      config.ExecutionConfig
	gate     *gates.Gate
	market   MarketSource
	quotes   providers.QuoteSource
	venue    venue.Venue
	recorder SlippageRecorder
}

// New wires an execution service. recorder may be nil.
func New(cfg config.ExecutionConfig, gate *gates.Gate, market MarketSource,
	quotes providers.QuoteSource, v venue.Venue, recorder SlippageRecorder) *Service {
	return &Service{
		cfg:      cfg,
		gate:     gate,
		market:   market,
		quotes:   quotes,
		venue:    v,
		recorder: recorder,
	}
}

// ExecuteBuy runs a buy signal to a terminal state. Sizing defaults to
// MaxPositionPct of the spendable wallet balance when the signal carries no
// explicit amount. A failed quote downgrades to a warning: the trade proceeds
// without a pre-trade estimate rather than missing the entry.
func (s *Service) ExecuteBuy(ctx context.Context, msg domain.BuySignalMessage) domain.TradeResult {
	if msg.TokenAddress == "" {
		return domain.Rejected(domain.TradeReceived, "missing token address")
	}

	check := s.gate.Validate(ctx, msg.TokenAddress)
	if !check.Valid {
		log.Warn().Str("token", msg.TokenAddress).Str("reason", check.Reason).
			Msg("buy rejected by validation gate")
		return domain.Rejected(domain.TradeValidated, check.Reason)
	}

	size := msg.TradeAmount
	if size == 0 {
		balance, err := s.venue.WalletBalance(ctx)
		if err != nil {
			return domain.Rejected(domain.TradeSized, fmt.Sprintf("wallet balance lookup failed: %v", err))
		}
		size = balance * s.cfg.MaxPositionPct
	}
	if size <= 0 || size < s.cfg.MinTradeAmount {
		return domain.Rejected(domain.TradeSized, "amount too small")
	}

	md, err := s.market.GetTokenMarketData(ctx, msg.TokenAddress)
	if err != nil {
		log.Warn().Err(err).Str("token", msg.TokenAddress).
			Msg("no market data for slippage model, using base slippage")
		md = domain.MarketData{}
	}
	slippageBps := s.dynamicSlippage(size, md)

	expectedOut := msg.ExpectedOutAmount
	if expectedOut == 0 {
		quote, err := s.quotes.GetQuote(ctx, baseCurrencyMint, msg.TokenAddress, size, slippageBps)
		if err != nil {
			log.Warn().Err(err).Str("token", msg.TokenAddress).
				Msg("quote unavailable, proceeding without expected output")
		} else {
			expectedOut = quote.OutAmount
		}
	}

	receipt, err := s.venue.SubmitBuy(ctx, venue.BuyOrder{
		PositionID:   msg.PositionID,
		TokenAddress: msg.TokenAddress,
		AmountIn:     size,
		SlippageBps:  slippageBps,
	})
	if err != nil {
		return domain.Rejected(domain.TradeSubmitted, fmt.Sprintf("buy submission failed: %v", err))
	}

	s.recordSlippage(ctx, msg.TokenAddress, "buy", expectedOut, receipt.OutAmount, slippageBps)
	log.Info().Str("token", msg.TokenAddress).Str("position_id", msg.PositionID).
		Float64("amount_in", size).Int("slippage_bps", slippageBps).
		Float64("out_amount", receipt.OutAmount).Msg("buy confirmed")

	return domain.TradeResult{
		Success:   true,
		State:     domain.TradeConfirmed,
		OutAmount: receipt.OutAmount,
		Signature: receipt.Signature,
	}
}

// ExecuteSell runs a sell signal to a terminal state. Balance checks reject
// before any venue call: a sell for more than the holding must never reach
// the wire.
func (s *Service) ExecuteSell(ctx context.Context, msg domain.SellSignalMessage) domain.TradeResult {
	if msg.Amount <= 0 {
		return domain.Rejected(domain.TradeValidated, "Invalid sell amount")
	}
	if msg.Amount > msg.CurrentBalance {
		return domain.Rejected(domain.TradeValidated, "Insufficient balance")
	}

	md, err := s.market.GetTokenMarketData(ctx, msg.TokenAddress)
	if err != nil {
		log.Warn().Err(err).Str("token", msg.TokenAddress).
			Msg("no market data for slippage model, using base slippage")
		md = domain.MarketData{}
	}
	slippageBps := s.dynamicSlippage(msg.Amount*md.Price, md)

	expectedOut := msg.ExpectedOutAmount
	if expectedOut == 0 {
		quote, err := s.quotes.GetQuote(ctx, msg.TokenAddress, baseCurrencyMint, msg.Amount, slippageBps)
		if err != nil {
			log.Warn().Err(err).Str("token", msg.TokenAddress).
				Msg("quote unavailable, proceeding without expected output")
		} else {
			expectedOut = quote.OutAmount
		}
	}

	receipt, err := s.venue.SubmitSell(ctx, venue.SellOrder{
		PositionID:   msg.PositionID,
		TokenAddress: msg.TokenAddress,
		Amount:       msg.Amount,
		SlippageBps:  slippageBps,
	})
	if err != nil {
		return domain.Rejected(domain.TradeSubmitted, fmt.Sprintf("sell submission failed: %v", err))
	}

	s.recordSlippage(ctx, msg.TokenAddress, "sell", expectedOut, receipt.OutAmount, slippageBps)
	log.Info().Str("token", msg.TokenAddress).Str("position_id", msg.PositionID).
		Float64("amount", msg.Amount).Int("slippage_bps", slippageBps).
		Float64("out_amount", receipt.OutAmount).Msg("sell confirmed")

	return domain.TradeResult{
		Success:   true,
		State:     domain.TradeConfirmed,
		OutAmount: receipt.OutAmount,
		Signature: receipt.Signature,
	}
}

// dynamicSlippage widens the tolerance with trade size relative to pool
// liquidity and with recent volatility, clamped to the configured ceiling.
// Missing market data degrades to the base tolerance.
func (s *Service) dynamicSlippage(notional float64, md domain.MarketData) int {
	bps := float64(s.cfg.BaseSlippageBps)
	if md.Liquidity > 0 && notional > 0 {
		bps += s.cfg.SizeImpactCoeff * (notional / md.Liquidity)
	}
	if vol := md.Volatility(); vol > 0 {
		bps += s.cfg.VolImpactCoeff * vol
	}
	if bps > float64(s.cfg.MaxSlippageBps) {
		bps = float64(s.cfg.MaxSlippageBps)
	}
	if bps < float64(s.cfg.BaseSlippageBps) {
		bps = float64(s.cfg.BaseSlippageBps)
	}
	return int(bps)
}

func (s *Service) recordSlippage(ctx context.Context, token, side string, expected, actual float64, bps int) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordSlippage(ctx, persistence.SlippageRecord{
		Token:           token,
		Side:            side,
		ExpectedOut:     expected,
		ActualOut:       actual,
		SlippageBpsUsed: bps,
	})
}
