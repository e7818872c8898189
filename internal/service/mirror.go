package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/davyttu/confidance-crypto/internal/models"
)

const notificationLimit = 50

// PendingContracts lists mirror rows that may still need a keeper action.
// It is used for discovery only.
func (s *Service) PendingContracts(ctx context.Context) ([]string, []string, error) {
	scheduled, err := s.repo.ListPendingScheduled(ctx)
	if err != nil {
		return nil, nil, err
	}
	recurring, err := s.repo.ListActiveRecurring(ctx)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	var sc []string
	for _, p := range scheduled {
		if !p.ReleaseTime.After(now) {
			sc = append(sc, p.ContractAddress)
		}
	}
	rc := make([]string, 0, len(recurring))
	for _, p := range recurring {
		rc = append(rc, p.ContractAddress)
	}
	return sc, rc, nil
}

// RecordExecution writes a confirmed execution into the mirror and notifies
// both parties. txHash is empty when the release was observed on-chain
// rather than sent by the keeper.
func (s *Service) RecordExecution(ctx context.Context, kind, contract, txHash string) error {
	addr, err := NormalizeAddress(contract)
	if err != nil {
		return err
	}

	switch kind {
	case models.KindScheduled:
		updated, err := s.repo.MarkScheduledReleased(ctx, addr, txHash)
		if err != nil {
			return err
		}
		if !updated {
			s.log.Warnf("Scheduled payment %s missing from mirror or already released", addr)
			return nil
		}
		p, err := s.repo.FindScheduledByContract(ctx, addr)
		if err != nil {
			return mapStoreErr(err)
		}
		title := "Payment released"
		s.notifyParties(ctx, models.NotificationReleased, addr, title,
			fmt.Sprintf("%s %s from %s to %s was released%s.", p.Amount, p.TokenSymbol, p.Payer, p.Payee, txSuffix(txHash)),
			p.Payer, p.Payee)

	case models.KindRecurring:
		p, err := s.repo.RecordRecurringExecution(ctx, addr, txHash)
		if errors.Is(mapStoreErr(err), ErrNotFound) {
			s.log.Warnf("Recurring payment %s missing from mirror or not active", addr)
			return nil
		}
		if err != nil {
			return err
		}
		title := fmt.Sprintf("Monthly payment %d/%d executed", p.ExecutedMonths, p.TotalMonths)
		parties := append([]string{p.Payer, p.Payee}, p.Beneficiaries...)
		s.notifyParties(ctx, models.NotificationExecuted, addr, title,
			fmt.Sprintf("%s %s sent by %s%s.", p.MonthlyAmount, p.TokenSymbol, p.Payer, txSuffix(txHash)),
			parties...)

	default:
		return fmt.Errorf("%w: unknown payment kind %q", ErrInvalidInput, kind)
	}

	s.log.Infof("Mirror updated for %s payment %s", kind, addr)
	return nil
}

func txSuffix(txHash string) string {
	if txHash == "" {
		return ""
	}
	return " (tx " + txHash + ")"
}

func (s *Service) notifyParties(ctx context.Context, kind, contract, title, message string, users ...string) {
	seen := make(map[string]bool, len(users))
	for _, user := range users {
		if user == "" || seen[user] {
			continue
		}
		seen[user] = true
		n := &models.Notification{
			UserAddress:     user,
			Kind:            kind,
			Title:           title,
			Message:         message,
			ContractAddress: contract,
		}
		if err := s.repo.CreateNotification(ctx, n); err != nil {
			s.log.Errorf("Failed to notify %s about %s: %v", user, contract, err)
		}
	}
}

// ListNotifications returns the newest notifications of a wallet
func (s *Service) ListNotifications(ctx context.Context, user string) ([]models.Notification, error) {
	addr, err := NormalizeAddress(user)
	if err != nil {
		return nil, err
	}
	return s.repo.ListNotifications(ctx, addr, notificationLimit)
}

// MarkNotificationRead marks a notification of user as read
func (s *Service) MarkNotificationRead(ctx context.Context, id int64, user string) error {
	addr, err := NormalizeAddress(user)
	if err != nil {
		return err
	}
	return mapStoreErr(s.repo.MarkNotificationRead(ctx, id, addr))
}
