// Package mailer はマジックリンクの配送手段を提供する。
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Mailer はマジックリンクをメールで配送するインターフェース。
type Mailer interface {
	SendMagicLink(ctx context.Context, to, link string) error
}

const magicLinkSubject = "Sign in to RFSbase"

// LogMailer はメールを送らず、リンクをログに出力する開発用の実装。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailerを生成する。loggerがnilの場合はslog.Default()を使う。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// SendMagicLink はリンクをログに出力する。
func (m *LogMailer) SendMagicLink(ctx context.Context, to, link string) error {
	m.logger.InfoContext(ctx, "magic link generated",
		slog.String("to", to),
		slog.String("link", link),
	)
	return nil
}

// SMTPConfig はSMTP送信の設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Timeout は接続から送信完了までの上限。0の場合は10秒。
	Timeout time.Duration
}

// sendFunc はnet/smtp.SendMailと同じシグネチャ。テストで差し替える。
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer はSMTPサーバー経由でマジックリンクを送信する。
type SMTPMailer struct {
	config SMTPConfig
	send   sendFunc
}

// NewSMTPMailer はSMTPMailerを生成する。
func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &SMTPMailer{config: config, send: smtp.SendMail}
}

// SendMagicLink はプレーンテキストのメールを送信する。
// smtp.SendMailはcontextを受け取らないため、ctxのキャンセルは待ち合わせの打ち切りにのみ使う。
func (m *SMTPMailer) SendMagicLink(ctx context.Context, to, link string) error {
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid recipient address")
	}

	addr := net.JoinHostPort(m.config.Host, strconv.Itoa(m.config.Port))
	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}
	msg := buildMessage(m.config.From, to, link)

	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, auth, m.config.From, []string{to}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send magic link mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to send magic link mail: %w", ctx.Err())
	}
}

func buildMessage(from, to, link string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + magicLinkSubject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Click the link below to sign in. It expires in 15 minutes.\r\n\r\n")
	b.WriteString(link + "\r\n\r\n")
	b.WriteString("If you did not request this email, you can safely ignore it.\r\n")
	return []byte(b.String())
}

// compile-time interface checks
var (
	_ Mailer = (*LogMailer)(nil)
	_ Mailer = (*SMTPMailer)(nil)
)
