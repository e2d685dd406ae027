package mail

import (
	"context"

	"staffdesk/internal/config"
	"staffdesk/pkg/logger"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Mailer sends notifications over SMTP. When credentials are not configured
// it logs the message instead of sending, so dev environments work without a
// mail account.
type Mailer struct {
	cfg config.MailConfig
}

func NewMailer(cfg config.MailConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) Send(ctx context.Context, to, subject, html string) error {
	if m.cfg.Username == "" || m.cfg.Password == "" {
		logger.Warn("mail credentials not set, simulating send",
			zap.String("to", to),
			zap.String("subject", subject))
		logger.Debug("simulated email body", zap.String("body", html))
		return nil
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, html)

	client, err := gomail.NewClient(m.cfg.Host,
		gomail.WithPort(m.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.cfg.Username),
		gomail.WithPassword(m.cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return err
	}
	logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
