package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/bloghaus/blog-api/internal/logging"
)

// Service is the notification gateway: plain SMTP with small HTML bodies.
// Callers fire sends from goroutines; nothing here retries.
type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromAddress  string
	appURL       string
	logger       *logging.Logger
}

func NewService(smtpHost, smtpPort, smtpUser, smtpPassword, fromAddress, appURL string, logger *logging.Logger) *Service {
	return &Service{
		smtpHost:     smtpHost,
		smtpPort:     smtpPort,
		smtpUser:     smtpUser,
		smtpPassword: smtpPassword,
		fromAddress:  fromAddress,
		appURL:       appURL,
		logger:       logger,
	}
}

var (
	activationTmpl = template.Must(template.New("activation").Parse(
		`Hello <strong>{{.Username}}</strong>,<br><br>Thank you for registering. Please click on the link below to complete your activation:<br><br><a href="{{.Link}}">{{.Link}}</a><br><br>This link will expire in 24 hours.`))

	activationConfirmTmpl = template.Must(template.New("activationConfirm").Parse(
		`Hello <strong>{{.Username}}</strong>,<br><br>Your account has been successfully activated!`))

	usernameReminderTmpl = template.Must(template.New("usernameReminder").Parse(
		`Hello <strong>{{.Email}}</strong>,<br><br>You recently requested your username. Please save it in your files: <strong>{{.Username}}</strong>`))

	passwordResetTmpl = template.Must(template.New("passwordReset").Parse(
		`Hello <strong>{{.Email}}</strong>,<br><br>You recently requested a password reset link. Please click on the link below to reset your password:<br><br><a href="{{.Link}}">{{.Link}}</a><br><br>This link will expire in 24 hours.`))

	passwordResetConfirmTmpl = template.Must(template.New("passwordResetConfirm").Parse(
		`Hello <strong>{{.Username}}</strong>,<br><br>This e-mail is to notify you that your password was recently reset.`))
)

type templateData struct {
	Username string
	Email    string
	Link     string
}

// SendActivationEmail mails the activation link for a new or re-requested
// activation. The token rides in the URL path.
func (s *Service) SendActivationEmail(ctx context.Context, toEmail, username, token string) error {
	link := fmt.Sprintf("%s/activation/%s", s.appURL, token)
	return s.send(ctx, toEmail, "Account Activation Link", activationTmpl, templateData{Username: username, Link: link})
}

// SendActivationConfirmation mails the post-activation notice.
func (s *Service) SendActivationConfirmation(ctx context.Context, toEmail, username string) error {
	return s.send(ctx, toEmail, "Account Activated", activationConfirmTmpl, templateData{Username: username})
}

// SendUsernameReminder mails the account's username to its address.
func (s *Service) SendUsernameReminder(ctx context.Context, toEmail, username string) error {
	return s.send(ctx, toEmail, "Username Request", usernameReminderTmpl, templateData{Email: toEmail, Username: username})
}

// SendPasswordResetEmail mails the reset link.
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	link := fmt.Sprintf("%s/resetpassword/%s", s.appURL, token)
	return s.send(ctx, toEmail, "Reset Password Request", passwordResetTmpl, templateData{Email: toEmail, Link: link})
}

// SendPasswordResetConfirmation mails the post-reset notice.
func (s *Service) SendPasswordResetConfirmation(ctx context.Context, toEmail, username string) error {
	return s.send(ctx, toEmail, "Password Reset", passwordResetConfirmTmpl, templateData{Username: username})
}

func (s *Service) send(ctx context.Context, to, subject string, tmpl *template.Template, data templateData) error {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}

	if err := s.sendEmail(to, subject, body.String()); err != nil {
		s.logger.Error("failed to send e-mail", "subject", subject, "email", to, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("e-mail sent", "subject", subject, "email", to)
	return nil
}

func (s *Service) sendEmail(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.fromAddress, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)
	return smtp.SendMail(addr, auth, s.fromAddress, []string{to}, msg)
}
