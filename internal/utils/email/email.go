package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/davyttu/confidance-crypto/internal/config"
	"github.com/davyttu/confidance-crypto/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Mailer delivers a prepared message
type Mailer interface {
	Send(e *email.Email) error
}

type smtpMailer struct {
	addr string
	auth smtp.Auth
}

func (m smtpMailer) Send(e *email.Email) error {
	return e.Send(m.addr, m.auth)
}

// Sender handles sending keeper emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	mailer Mailer
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		mailer: smtpMailer{
			addr: fmt.Sprintf("%s:%s", cfg.SMTPHost, cfg.SMTPPort),
			auth: smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost),
		},
	}
}

// NewSenderWithMailer creates a sender that hands messages to m
func NewSenderWithMailer(cfg *config.Config, logger *logrus.Logger, m Mailer) *Sender {
	return &Sender{cfg: cfg, logger: logger, mailer: m}
}

// SendExecutionNotice tells the operator that the keeper executed a payment
func (s *Sender) SendExecutionNotice(kind, contract, txHash, explorerURL string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.NotifyEmail}
	if kind == models.KindRecurring {
		e.Subject = "Recurring payment executed"
	} else {
		e.Subject = "Scheduled payment released"
	}

	body := fmt.Sprintf(
		"The keeper executed the %s payment %s.\n"+
			"Transaction: %s\n"+
			"Time: %s\n",
		kind, contract, txHash, time.Now().UTC().Format("2006-01-02 15:04:05 MST"),
	)
	if explorerURL != "" {
		body += fmt.Sprintf("Explorer: %s/tx/%s\n", explorerURL, txHash)
	}
	body += "\nConfidance Crypto keeper"
	e.Text = []byte(body)

	if err := s.mailer.Send(e); err != nil {
		s.logger.Errorf("Failed to send execution notice for %s: %v", contract, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", s.cfg.NotifyEmail, e.Subject)
	return nil
}
