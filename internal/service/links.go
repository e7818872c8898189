package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/davyttu/confidance-crypto/internal/models"
	"github.com/davyttu/confidance-crypto/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentLinkInput is the request body for a new payment link
type PaymentLinkInput struct {
	Payee        string          `json:"payee"`
	TokenAddress string          `json:"token_address"`
	TokenSymbol  string          `json:"token_symbol"`
	Amount       decimal.Decimal `json:"amount"`
	ChainID      int64           `json:"chain_id"`
	Description  string          `json:"description"`
	ExpiresIn    string          `json:"expires_in"` // Go duration, empty for no expiry
}

const maxDescription = 280

// CreatePaymentLink stores a signed payment link created by creator
func (s *Service) CreatePaymentLink(ctx context.Context, creator string, in PaymentLinkInput) (*models.PaymentLink, error) {
	creatorAddr, err := NormalizeAddress(creator)
	if err != nil {
		return nil, err
	}
	payee, err := NormalizeAddress(in.Payee)
	if err != nil {
		return nil, err
	}
	token := ""
	if in.TokenAddress != "" {
		if token, err = NormalizeAddress(in.TokenAddress); err != nil {
			return nil, err
		}
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if in.ChainID <= 0 {
		return nil, fmt.Errorf("%w: chain_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.TokenSymbol) == "" {
		return nil, fmt.Errorf("%w: token_symbol is required", ErrInvalidInput)
	}
	if len(in.Description) > maxDescription {
		return nil, fmt.Errorf("%w: description longer than %d characters", ErrInvalidInput, maxDescription)
	}

	link := &models.PaymentLink{
		ID:           uuid.New().String(),
		Creator:      creatorAddr,
		Payee:        payee,
		TokenAddress: token,
		TokenSymbol:  strings.ToUpper(strings.TrimSpace(in.TokenSymbol)),
		Amount:       in.Amount,
		ChainID:      in.ChainID,
		Description:  in.Description,
	}
	if in.ExpiresIn != "" {
		d, err := time.ParseDuration(in.ExpiresIn)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: expires_in must be a positive duration", ErrInvalidInput)
		}
		expires := s.now().Add(d).UTC()
		link.ExpiresAt = &expires
	}
	link.Signature = utils.GenerateHMAC(s.config.LinkSecret, linkFields(link)...)

	if err := s.repo.CreatePaymentLink(ctx, link); err != nil {
		return nil, err
	}

	s.log.Infof("Payment link %s created by %s", link.ID, link.Creator)
	return link, nil
}

// GetPaymentLink returns a link after checking its signature and expiry
func (s *Service) GetPaymentLink(ctx context.Context, id string) (*models.PaymentLink, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	link, err := s.repo.FindPaymentLink(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if !utils.VerifyHMAC(link.Signature, s.config.LinkSecret, linkFields(link)...) {
		s.log.Warnf("Payment link %s failed signature check", id)
		return nil, ErrNotFound
	}
	if link.Expired(s.now()) {
		return nil, ErrExpired
	}
	return link, nil
}

func linkFields(l *models.PaymentLink) []string {
	expires := ""
	if l.ExpiresAt != nil {
		expires = strconv.FormatInt(l.ExpiresAt.Unix(), 10)
	}
	return []string{
		l.ID, l.Creator, l.Payee, l.TokenAddress, l.TokenSymbol,
		l.Amount.String(), strconv.FormatInt(l.ChainID, 10), expires,
	}
}
