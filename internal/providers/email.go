package providers

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

var headerSafe = strings.NewReplacer("\r", " ", "\n", " ")

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends notifications to a fixed list of recipients over SMTP.
type Email struct {
	server   string
	port     int
	username string
	password string
	to       []string
	sendMail sendMailFunc
}

func NewEmail(server string, port int, username, password, to string) (*Email, error) {
	var recipients []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if server == "" || port == 0 {
		return nil, errors.New("missing Email configuration: SMTPServer or SMTPPort is empty")
	}
	if len(recipients) == 0 {
		return nil, errors.New("missing Email configuration: no recipients")
	}
	return &Email{
		server:   server,
		port:     port,
		username: username,
		password: password,
		to:       recipients,
		sendMail: smtp.SendMail,
	}, nil
}

func (e *Email) Send(ctx context.Context, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	message := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		strings.Join(e.to, ", "), headerSafe.Replace(title), body)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.server)
	}
	addr := fmt.Sprintf("%s:%d", e.server, e.port)

	if err := e.sendMail(addr, auth, e.username, e.to, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", strings.Join(e.to, ","), err)
	}
	return nil
}
