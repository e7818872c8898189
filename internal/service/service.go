package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/davyttu/confidance-crypto/internal/config"
	"github.com/davyttu/confidance-crypto/internal/integrations/ecb"
	"github.com/davyttu/confidance-crypto/internal/models"
	"github.com/davyttu/confidance-crypto/internal/repository"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrExpired        = errors.New("expired")
	ErrConflict       = errors.New("already registered")
)

// Store is the persistence the service needs; *repository.Repository
// satisfies it.
type Store interface {
	CreateScheduledPayment(ctx context.Context, p *models.ScheduledPayment) error
	FindScheduledByContract(ctx context.Context, contract string) (*models.ScheduledPayment, error)
	ListScheduledByWallet(ctx context.Context, wallet string) ([]models.ScheduledPayment, error)
	ListPendingScheduled(ctx context.Context) ([]models.ScheduledPayment, error)
	MarkScheduledReleased(ctx context.Context, contract, txHash string) (bool, error)

	CreateRecurringPayment(ctx context.Context, p *models.RecurringPayment) error
	FindRecurringByContract(ctx context.Context, contract string) (*models.RecurringPayment, error)
	ListRecurringByWallet(ctx context.Context, wallet string) ([]models.RecurringPayment, error)
	ListActiveRecurring(ctx context.Context) ([]models.RecurringPayment, error)
	ListRecurringEvents(ctx context.Context, contract string) ([]models.RecurringPaymentEvent, error)
	RecordRecurringExecution(ctx context.Context, contract, txHash string) (*models.RecurringPayment, error)

	CreatePaymentLink(ctx context.Context, l *models.PaymentLink) error
	FindPaymentLink(ctx context.Context, id string) (*models.PaymentLink, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, user string, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64, user string) error
}

var _ Store = (*repository.Repository)(nil)

// RateSource provides fiat reference rates
type RateSource interface {
	GetRate(ctx context.Context, currency string) (ecb.Rate, error)
}

// Service handles business logic
type Service struct {
	repo   Store
	log    *logrus.Logger
	config *config.Config
	rates  RateSource
	now    func() time.Time
}

// NewService initializes a new service. rates may be nil.
func NewService(repo Store, log *logrus.Logger, cfg *config.Config, rates RateSource) *Service {
	return &Service{repo: repo, log: log, config: cfg, rates: rates, now: time.Now}
}

// NormalizeAddress validates a 0x-prefixed EVM address and lowercases it
func NormalizeAddress(address string) (string, error) {
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return strings.ToLower(address), nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// GetRecurring returns a recurring payment with its event log
func (s *Service) GetRecurring(ctx context.Context, contract string) (*models.RecurringDetails, error) {
	addr, err := NormalizeAddress(contract)
	if err != nil {
		return nil, err
	}

	payment, err := s.repo.FindRecurringByContract(ctx, addr)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	events, err := s.repo.ListRecurringEvents(ctx, addr)
	if err != nil {
		return nil, err
	}

	details := &models.RecurringDetails{Payment: payment, Events: events}
	if next := payment.NextPaymentAt(); !next.IsZero() {
		details.NextPaymentAt = &next
	}
	return details, nil
}

// GetScheduled returns a scheduled payment
func (s *Service) GetScheduled(ctx context.Context, contract string) (*models.ScheduledPayment, error) {
	addr, err := NormalizeAddress(contract)
	if err != nil {
		return nil, err
	}
	payment, err := s.repo.FindScheduledByContract(ctx, addr)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return payment, nil
}

// GetWalletPayments lists every payment a wallet sends or receives
func (s *Service) GetWalletPayments(ctx context.Context, wallet string) (*models.WalletPayments, error) {
	addr, err := NormalizeAddress(wallet)
	if err != nil {
		return nil, err
	}
	scheduled, err := s.repo.ListScheduledByWallet(ctx, addr)
	if err != nil {
		return nil, err
	}
	recurring, err := s.repo.ListRecurringByWallet(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &models.WalletPayments{Wallet: addr, Scheduled: scheduled, Recurring: recurring}, nil
}

// EURRate returns how many US dollars one euro buys
func (s *Service) EURRate(ctx context.Context) (ecb.Rate, error) {
	if s.rates == nil {
		return ecb.Rate{}, fmt.Errorf("rate source not configured")
	}
	return s.rates.GetRate(ctx, "USD")
}
