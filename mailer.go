package auth

import (
	"context"
	"fmt"
	"net/url"
)

// Mailer renders and dispatches the account emails. Delivery is
// fire-and-forget: a failed send is logged and never rolls back the state
// change that triggered it.
type Mailer struct {
	notifier Notifier
	config   Config
	logger   Logger
}

func NewMailer(notifier Notifier, config Config) *Mailer {
	if notifier == nil {
		notifier = logNotifier{logger: defLogger{}}
	}
	return &Mailer{
		notifier: notifier,
		config:   config,
		logger:   defLogger{},
	}
}

func (m *Mailer) WithLogger(logger Logger) *Mailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// SendActivationEmail dispatches the account activation link.
func (m *Mailer) SendActivationEmail(ctx context.Context, email, secret string) {
	link := m.buildLink(m.config.GetEmailVerificationPath(), email, "code", secret)
	subject := "Activate your account"
	body := fmt.Sprintf(
		"Hello,\n\nTo activate your account, please follow this link:\n%s\n\nIf you did not request this, please ignore this email.",
		link,
	)

	m.dispatch(ctx, email, subject, body)
}

// SendPasswordResetEmail dispatches the password reset link.
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, email, secret string) {
	link := m.buildLink(m.config.GetPasswordResetPath(), email, "token", secret)
	subject := "Reset your password"
	body := fmt.Sprintf(
		"Hello,\n\nYou requested a password reset. Please follow this link to choose a new password:\n%s\n\nThe link expires shortly. If you did not request a reset, please ignore this email.",
		link,
	)

	m.dispatch(ctx, email, subject, body)
}

func (m *Mailer) buildLink(path, email, param, secret string) string {
	return fmt.Sprintf(
		"%s%s?email=%s&%s=%s",
		m.config.GetClientBaseURL(),
		path,
		url.QueryEscape(email),
		param,
		url.QueryEscape(secret),
	)
}

func (m *Mailer) dispatch(ctx context.Context, to, subject, body string) {
	go func() {
		// Detach from the request context so an HTTP response finishing
		// first does not cancel the send.
		if err := m.notifier.Send(context.WithoutCancel(ctx), to, subject, body); err != nil {
			m.logger.Error("failed to send email", "to", to, "subject", subject, "error", err)
		}
	}()
}

// logNotifier is the default Notifier. It prints the message instead of
// delivering it, which is what you want in development and nothing more.
type logNotifier struct {
	logger Logger
}

func (n logNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.logger.Info("====== SENDING EMAIL NOTIFICATION =======")
	n.logger.Info("to: %s", to)
	n.logger.Info("subject: %s", subject)
	n.logger.Info("%s", body)
	return nil
}
