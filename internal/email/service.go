package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/hakangoksu/user-management/internal/logging"
)

// Service sends account emails over SMTP. Callers treat it as best
// effort and invoke it from a goroutine; a failed send must never fail
// the request that triggered it.
type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromEmail    string
	fromName     string
}

func NewService(smtpHost, smtpPort, smtpUser, smtpPassword, fromName string) *Service {
	return &Service{
		smtpHost:     smtpHost,
		smtpPort:     smtpPort,
		smtpUser:     smtpUser,
		smtpPassword: smtpPassword,
		fromEmail:    smtpUser,
		fromName:     fromName,
	}
}

var verificationTmpl = template.Must(template.New("verification").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .button {
            display: inline-block;
            background-color: #4F46E5;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
        }
    </style>
</head>
<body>
    <h2>Hello {{.Username}},</h2>
    <p>Thank you for registering. Please verify your email address by clicking the link below:</p>

    <a href="{{.CallbackURL}}" class="button" style="color: white !important;">Verify Email</a>

    <p>Or copy and paste this link into your browser:</p>
    <p style="word-break: break-all; color: #4F46E5;">{{.CallbackURL}}</p>

    <p style="margin-top: 30px;">If you did not register, please ignore this email.</p>
    <div class="footer">
        <p>This link will expire in 24 hours.</p>
    </div>
</body>
</html>
`))

// SendVerificationEmail sends the account verification link.
// Designed to be called in a goroutine; the context bounds the send.
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, username, callbackURL string) error {
	logger := logging.GetLoggerFromContext(ctx)

	subject := "Verify Your Email Address"

	var buf bytes.Buffer
	data := struct {
		Username    string
		CallbackURL string
	}{
		Username:    username,
		CallbackURL: callbackURL,
	}
	if err := verificationTmpl.Execute(&buf, data); err != nil {
		logger.Error("failed to render verification email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(ctx, toEmail, subject, buf.String()); err != nil {
		logger.Error("failed to send verification email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("verification email sent", "email", toEmail)
	return nil
}

// sendEmail delivers one message. smtp.SendMail has no context support,
// so the call runs on its own goroutine and we give up waiting when the
// context expires; an abandoned send finishes or fails on its own.
func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)

	msg := []byte(fmt.Sprintf(
		"From: %s <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.fromName, s.fromEmail, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.fromEmail, []string{to}, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send timed out: %w", ctx.Err())
	}
}
