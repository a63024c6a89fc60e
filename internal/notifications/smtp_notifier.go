package notifications

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	// base URL the reset link points at, e.g. https://app.petdor.com
	AppURL string
}

// SMTPNotifier sends HTML mail over SMTPS (implicit TLS).
type SMTPNotifier struct {
	cfg SMTPConfig
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, in SendPasswordResetInput) error {
	link := fmt.Sprintf("%s/reset-senha?token=%s", n.cfg.AppURL, in.Token)

	body := fmt.Sprintf(`
	<html>
	  <body style="font-family: Arial, sans-serif; background-color: #f4f7fa; padding: 20px;">
	    <div style="max-width: 600px; margin: auto; background: #ffffff; border-radius: 8px; padding: 20px; border: 1px solid #e5e9f0;">
	      <h2 style="color: #2b8aef;">Redefinição de senha</h2>
	      <p>Olá, %s!</p>
	      <p>Recebemos um pedido para redefinir a sua senha. Clique no botão abaixo para escolher uma nova:</p>
	      <p><a href="%s" style="background: #2b8aef; color: #ffffff; padding: 10px 18px; border-radius: 6px; text-decoration: none;">Redefinir senha</a></p>
	      <p>O link expira em %d minutos. Se você não pediu a redefinição, ignore este e-mail.</p>
	    </div>
	  </body>
	</html>`, in.Name, link, int(in.ExpiresIn.Minutes()))

	return n.send(ctx, in.Email, "PetDor - Redefinição de senha", body)
}

func (n *SMTPNotifier) SendWelcome(ctx context.Context, in SendWelcomeInput) error {
	body := fmt.Sprintf(`
	<html>
	  <body style="font-family: Arial, sans-serif; background-color: #f4f7fa; padding: 20px;">
	    <div style="max-width: 600px; margin: auto; background: #ffffff; border-radius: 8px; padding: 20px; border: 1px solid #e5e9f0;">
	      <h2 style="color: #2b8aef;">Bem-vindo ao PetDor</h2>
	      <p>Olá, %s! Sua conta foi criada com sucesso.</p>
	    </div>
	  </body>
	</html>`, in.Name)

	return n.send(ctx, in.Email, "Bem-vindo ao PetDor", body)
}

func (n *SMTPNotifier) SendPasswordChanged(ctx context.Context, in SendPasswordChangedInput) error {
	body := fmt.Sprintf(`
	<html>
	  <body style="font-family: Arial, sans-serif; background-color: #f4f7fa; padding: 20px;">
	    <div style="max-width: 600px; margin: auto; background: #ffffff; border-radius: 8px; padding: 20px; border: 1px solid #e5e9f0;">
	      <h2 style="color: #2b8aef;">Senha alterada</h2>
	      <p>Olá, %s. A senha da sua conta acabou de ser alterada. Se não foi você, fale com o suporte imediatamente.</p>
	    </div>
	  </body>
	</html>`, in.Name)

	return n.send(ctx, in.Email, "PetDor - Senha alterada", body)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, htmlBody string) error {
	if n.cfg.User == "" || n.cfg.Password == "" {
		return fmt.Errorf("smtp configuration incomplete")
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))

	dialer := &net.Dialer{Timeout: 10 * time.Second}

	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: n.cfg.Host})

	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)

	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}

	defer client.Close()

	// honor caller cancellation while the SMTP dialogue runs
	done := make(chan error, 1)

	go func() {
		done <- n.dialogue(client, to, subject, htmlBody)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *SMTPNotifier) dialogue(client *smtp.Client, to, subject, htmlBody string) error {
	auth := smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Host)

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	from := n.cfg.From
	if from == "" {
		from = n.cfg.User
	}

	if err := client.Mail(from); err != nil {
		return err
	}

	if err := client.Rcpt(to); err != nil {
		return err
	}

	wc, err := client.Data()

	if err != nil {
		return err
	}

	msg := "From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"utf-8\"\r\n" +
		"\r\n" +
		htmlBody

	if _, err := wc.Write([]byte(msg)); err != nil {
		wc.Close()
		return err
	}

	if err := wc.Close(); err != nil {
		return err
	}

	return client.Quit()
}
