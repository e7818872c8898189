package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/davyttu/confidance-crypto/internal/models"
	"github.com/davyttu/confidance-crypto/internal/repository"
	"github.com/shopspring/decimal"
)

// ScheduledInput is what the frontend reports after deploying a scheduled
// payment contract
type ScheduledInput struct {
	ContractAddress string          `json:"contract_address"`
	ChainID         int64           `json:"chain_id"`
	Payee           string          `json:"payee"`
	TokenAddress    string          `json:"token_address"`
	TokenSymbol     string          `json:"token_symbol"`
	Amount          decimal.Decimal `json:"amount"`
	ReleaseTime     time.Time       `json:"release_time"`
}

// RecurringInput is what the frontend reports after deploying a recurring
// payment contract
type RecurringInput struct {
	ContractAddress string          `json:"contract_address"`
	ChainID         int64           `json:"chain_id"`
	Payee           string          `json:"payee"`
	TokenAddress    string          `json:"token_address"`
	TokenSymbol     string          `json:"token_symbol"`
	MonthlyAmount   decimal.Decimal `json:"monthly_amount"`
	FirstPaymentAt  time.Time       `json:"first_payment_at"`
	TotalMonths     int             `json:"total_months"`
	Beneficiaries   []string        `json:"beneficiaries"`
}

type paymentParties struct {
	contract, payer, payee, token, symbol string
}

func (s *Service) validateParties(payer, contract, payee, token, symbol string, chainID int64, amount decimal.Decimal) (paymentParties, error) {
	var (
		out paymentParties
		err error
	)
	if out.payer, err = NormalizeAddress(payer); err != nil {
		return out, err
	}
	if out.contract, err = NormalizeAddress(contract); err != nil {
		return out, err
	}
	if out.payee, err = NormalizeAddress(payee); err != nil {
		return out, err
	}
	if token != "" {
		if out.token, err = NormalizeAddress(token); err != nil {
			return out, err
		}
	}
	out.symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if out.symbol == "" {
		return out, fmt.Errorf("%w: token_symbol is required", ErrInvalidInput)
	}
	if chainID <= 0 {
		return out, fmt.Errorf("%w: chain_id is required", ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return out, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	return out, nil
}

func mapCreateErr(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrConflict
	}
	return err
}

// RegisterScheduled mirrors a freshly deployed scheduled payment whose payer
// is the authenticated wallet
func (s *Service) RegisterScheduled(ctx context.Context, payer string, in ScheduledInput) (*models.ScheduledPayment, error) {
	parties, err := s.validateParties(payer, in.ContractAddress, in.Payee, in.TokenAddress, in.TokenSymbol, in.ChainID, in.Amount)
	if err != nil {
		return nil, err
	}
	if in.ReleaseTime.IsZero() {
		return nil, fmt.Errorf("%w: release_time is required", ErrInvalidInput)
	}

	p := &models.ScheduledPayment{
		ContractAddress: parties.contract,
		ChainID:         in.ChainID,
		Payer:           parties.payer,
		Payee:           parties.payee,
		TokenAddress:    parties.token,
		TokenSymbol:     parties.symbol,
		Amount:          in.Amount,
		ReleaseTime:     in.ReleaseTime.UTC(),
	}
	if err := s.repo.CreateScheduledPayment(ctx, p); err != nil {
		return nil, mapCreateErr(err)
	}

	s.log.Infof("Scheduled payment %s registered by %s", p.ContractAddress, p.Payer)
	return p, nil
}

// RegisterRecurring mirrors a freshly deployed recurring payment whose payer
// is the authenticated wallet
func (s *Service) RegisterRecurring(ctx context.Context, payer string, in RecurringInput) (*models.RecurringPayment, error) {
	parties, err := s.validateParties(payer, in.ContractAddress, in.Payee, in.TokenAddress, in.TokenSymbol, in.ChainID, in.MonthlyAmount)
	if err != nil {
		return nil, err
	}
	if in.FirstPaymentAt.IsZero() {
		return nil, fmt.Errorf("%w: first_payment_at is required", ErrInvalidInput)
	}
	if in.TotalMonths <= 0 {
		return nil, fmt.Errorf("%w: total_months must be positive", ErrInvalidInput)
	}
	beneficiaries := make([]string, 0, len(in.Beneficiaries))
	for _, b := range in.Beneficiaries {
		addr, err := NormalizeAddress(b)
		if err != nil {
			return nil, err
		}
		beneficiaries = append(beneficiaries, addr)
	}

	p := &models.RecurringPayment{
		ContractAddress: parties.contract,
		ChainID:         in.ChainID,
		Payer:           parties.payer,
		Payee:           parties.payee,
		TokenAddress:    parties.token,
		TokenSymbol:     parties.symbol,
		MonthlyAmount:   in.MonthlyAmount,
		FirstPaymentAt:  in.FirstPaymentAt.UTC(),
		TotalMonths:     in.TotalMonths,
		Status:          models.RecurringActive,
		Beneficiaries:   beneficiaries,
	}
	if err := s.repo.CreateRecurringPayment(ctx, p); err != nil {
		return nil, mapCreateErr(err)
	}

	s.log.Infof("Recurring payment %s registered by %s for %d months", p.ContractAddress, p.Payer, p.TotalMonths)
	return p, nil
}
