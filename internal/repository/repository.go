package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/davyttu/confidance-crypto/internal/models"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert hits a unique constraint
	ErrDuplicate = errors.New("already exists")
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Repository provides database operations on the payment mirror
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const scheduledColumns = `id, contract_address, chain_id, payer, payee, token_address, token_symbol,
		amount, release_time, released, release_tx_hash, created_at, updated_at`

const recurringColumns = `id, contract_address, chain_id, payer, payee, token_address, token_symbol,
		monthly_amount, first_payment_at, total_months, executed_months, status, beneficiaries,
		created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheduled(row rowScanner) (*models.ScheduledPayment, error) {
	p := &models.ScheduledPayment{}
	err := row.Scan(&p.ID, &p.ContractAddress, &p.ChainID, &p.Payer, &p.Payee, &p.TokenAddress,
		&p.TokenSymbol, &p.Amount, &p.ReleaseTime, &p.Released, &p.ReleaseTxHash, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanRecurring(row rowScanner) (*models.RecurringPayment, error) {
	p := &models.RecurringPayment{}
	err := row.Scan(&p.ID, &p.ContractAddress, &p.ChainID, &p.Payer, &p.Payee, &p.TokenAddress,
		&p.TokenSymbol, &p.MonthlyAmount, &p.FirstPaymentAt, &p.TotalMonths, &p.ExecutedMonths,
		&p.Status, pq.Array(&p.Beneficiaries), &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateScheduledPayment inserts a scheduled payment mirror row
func (r *Repository) CreateScheduledPayment(ctx context.Context, p *models.ScheduledPayment) error {
	query := `
		INSERT INTO scheduled_payments (contract_address, chain_id, payer, payee, token_address, token_symbol,
			amount, release_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, normalize(p.ContractAddress), p.ChainID, normalize(p.Payer),
		normalize(p.Payee), normalize(p.TokenAddress), p.TokenSymbol, p.Amount, p.ReleaseTime).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create scheduled payment: %w", err)
	}
	return nil
}

// FindScheduledByContract retrieves a scheduled payment by contract address
func (r *Repository) FindScheduledByContract(ctx context.Context, contract string) (*models.ScheduledPayment, error) {
	query := `SELECT ` + scheduledColumns + `
		FROM scheduled_payments
		WHERE contract_address = $1`
	p, err := scanScheduled(r.db.QueryRowContext(ctx, query, normalize(contract)))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find scheduled payment: %w", err)
	}
	return p, nil
}

// ListScheduledByWallet lists scheduled payments where wallet is payer or payee
func (r *Repository) ListScheduledByWallet(ctx context.Context, wallet string) ([]models.ScheduledPayment, error) {
	query := `SELECT ` + scheduledColumns + `
		FROM scheduled_payments
		WHERE payer = $1 OR payee = $1
		ORDER BY release_time DESC`
	return r.queryScheduled(ctx, query, normalize(wallet))
}

// ListPendingScheduled lists scheduled payments not yet marked released
func (r *Repository) ListPendingScheduled(ctx context.Context) ([]models.ScheduledPayment, error) {
	query := `SELECT ` + scheduledColumns + `
		FROM scheduled_payments
		WHERE released = FALSE
		ORDER BY release_time ASC`
	return r.queryScheduled(ctx, query)
}

func (r *Repository) queryScheduled(ctx context.Context, query string, args ...any) ([]models.ScheduledPayment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled payments: %w", err)
	}
	defer rows.Close()

	out := []models.ScheduledPayment{}
	for rows.Next() {
		p, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled payment: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list scheduled payments: %w", err)
	}
	return out, nil
}

// MarkScheduledReleased flags a scheduled payment as released. It reports
// false when the row was missing or already released.
func (r *Repository) MarkScheduledReleased(ctx context.Context, contract, txHash string) (bool, error) {
	query := `
		UPDATE scheduled_payments
		SET released = TRUE, release_tx_hash = $2, updated_at = CURRENT_TIMESTAMP
		WHERE contract_address = $1 AND released = FALSE`
	res, err := r.db.ExecContext(ctx, query, normalize(contract), txHash)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment released: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark payment released: %w", err)
	}
	return n > 0, nil
}

// CreateRecurringPayment inserts a recurring payment and its creation event
func (r *Repository) CreateRecurringPayment(ctx context.Context, p *models.RecurringPayment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if p.Status == "" {
		p.Status = models.RecurringActive
	}
	beneficiaries := make([]string, len(p.Beneficiaries))
	for i, b := range p.Beneficiaries {
		beneficiaries[i] = normalize(b)
	}

	query := `
		INSERT INTO recurring_payments (contract_address, chain_id, payer, payee, token_address, token_symbol,
			monthly_amount, first_payment_at, total_months, status, beneficiaries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRowContext(ctx, query, normalize(p.ContractAddress), p.ChainID, normalize(p.Payer),
		normalize(p.Payee), normalize(p.TokenAddress), p.TokenSymbol, p.MonthlyAmount, p.FirstPaymentAt,
		p.TotalMonths, p.Status, pq.Array(beneficiaries)).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create recurring payment: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recurring_payment_events (contract_address, event_type, month_index, amount)
		VALUES ($1, $2, 0, 0)`, normalize(p.ContractAddress), models.EventCreated)
	if err != nil {
		return fmt.Errorf("failed to append recurring event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recurring payment: %w", err)
	}
	return nil
}

// FindRecurringByContract retrieves a recurring payment by contract address
func (r *Repository) FindRecurringByContract(ctx context.Context, contract string) (*models.RecurringPayment, error) {
	query := `SELECT ` + recurringColumns + `
		FROM recurring_payments
		WHERE contract_address = $1`
	p, err := scanRecurring(r.db.QueryRowContext(ctx, query, normalize(contract)))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recurring payment: %w", err)
	}
	return p, nil
}

// ListRecurringByWallet lists recurring payments where wallet is payer or payee
func (r *Repository) ListRecurringByWallet(ctx context.Context, wallet string) ([]models.RecurringPayment, error) {
	query := `SELECT ` + recurringColumns + `
		FROM recurring_payments
		WHERE payer = $1 OR payee = $1 OR $1 = ANY(beneficiaries)
		ORDER BY created_at DESC`
	return r.queryRecurring(ctx, query, normalize(wallet))
}

// ListActiveRecurring lists recurring payments that still have months to run
func (r *Repository) ListActiveRecurring(ctx context.Context) ([]models.RecurringPayment, error) {
	query := `SELECT ` + recurringColumns + `
		FROM recurring_payments
		WHERE status = $1 AND executed_months < total_months
		ORDER BY first_payment_at ASC`
	return r.queryRecurring(ctx, query, models.RecurringActive)
}

func (r *Repository) queryRecurring(ctx context.Context, query string, args ...any) ([]models.RecurringPayment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring payments: %w", err)
	}
	defer rows.Close()

	out := []models.RecurringPayment{}
	for rows.Next() {
		p, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring payment: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list recurring payments: %w", err)
	}
	return out, nil
}

// ListRecurringEvents returns the event log of a recurring payment, oldest first
func (r *Repository) ListRecurringEvents(ctx context.Context, contract string) ([]models.RecurringPaymentEvent, error) {
	query := `
		SELECT id, contract_address, event_type, month_index, amount, tx_hash, created_at
		FROM recurring_payment_events
		WHERE contract_address = $1
		ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, normalize(contract))
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring events: %w", err)
	}
	defer rows.Close()

	events := []models.RecurringPaymentEvent{}
	for rows.Next() {
		var e models.RecurringPaymentEvent
		if err := rows.Scan(&e.ID, &e.ContractAddress, &e.EventType, &e.MonthIndex, &e.Amount, &e.TxHash, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recurring event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list recurring events: %w", err)
	}
	return events, nil
}

// RecordRecurringExecution advances the schedule cursor by one month and
// appends an executed event, in one transaction. The updated payment is
// returned.
func (r *Repository) RecordRecurringExecution(ctx context.Context, contract, txHash string) (*models.RecurringPayment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE recurring_payments
		SET executed_months = executed_months + 1,
			status = CASE WHEN executed_months + 1 >= total_months THEN 'completed' ELSE status END,
			updated_at = CURRENT_TIMESTAMP
		WHERE contract_address = $1 AND status = 'active' AND executed_months < total_months
		RETURNING ` + recurringColumns
	p, err := scanRecurring(tx.QueryRowContext(ctx, query, normalize(contract)))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to advance recurring payment: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recurring_payment_events (contract_address, event_type, month_index, amount, tx_hash)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ContractAddress, models.EventExecuted, p.ExecutedMonths, p.MonthlyAmount, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to append recurring event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit recurring execution: %w", err)
	}
	return p, nil
}

// CreatePaymentLink inserts a payment link
func (r *Repository) CreatePaymentLink(ctx context.Context, l *models.PaymentLink) error {
	query := `
		INSERT INTO payment_links (id, creator, payee, token_address, token_symbol, amount, chain_id,
			description, signature, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, CURRENT_TIMESTAMP)
		RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, l.ID, normalize(l.Creator), normalize(l.Payee),
		normalize(l.TokenAddress), l.TokenSymbol, l.Amount, l.ChainID, l.Description, l.Signature, l.ExpiresAt).
		Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment link: %w", err)
	}
	return nil
}

// FindPaymentLink retrieves a payment link by id
func (r *Repository) FindPaymentLink(ctx context.Context, id string) (*models.PaymentLink, error) {
	query := `
		SELECT id, creator, payee, token_address, token_symbol, amount, chain_id, description,
			signature, expires_at, created_at
		FROM payment_links
		WHERE id = $1`
	l := &models.PaymentLink{}
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(&l.ID, &l.Creator, &l.Payee, &l.TokenAddress,
		&l.TokenSymbol, &l.Amount, &l.ChainID, &l.Description, &l.Signature, &expiresAt, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment link: %w", err)
	}
	if expiresAt.Valid {
		l.ExpiresAt = &expiresAt.Time
	}
	return l, nil
}

// CreateNotification inserts a notification
func (r *Repository) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_address, kind, title, message, contract_address, created_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, normalize(n.UserAddress), n.Kind, n.Title, n.Message,
		normalize(n.ContractAddress)).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications returns the newest notifications of a wallet
func (r *Repository) ListNotifications(ctx context.Context, user string, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, user_address, kind, title, message, contract_address, read, created_at
		FROM notifications
		WHERE user_address = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, normalize(user), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserAddress, &n.Kind, &n.Title, &n.Message, &n.ContractAddress, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationRead flags a notification owned by user as read
func (r *Repository) MarkNotificationRead(ctx context.Context, id int64, user string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE id = $1 AND user_address = $2`, id, normalize(user))
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
