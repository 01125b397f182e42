package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"memorial-site/internal/core/config"
)

type sendFunc func(ctx context.Context, msg []byte, to string) error

type SMTPMailer struct {
	cfg  config.Mail
	log  *zap.Logger
	send sendFunc

	verifyOnce sync.Once
}

func NewSMTPMailer(c config.Mail, l *zap.Logger) *SMTPMailer {
	m := &SMTPMailer{cfg: c, log: l}
	m.send = m.deliver
	return m
}

func (m *SMTPMailer) addr() string {
	return net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
}

// 465 走隐式 TLS，其余端口由 STARTTLS 协商
func (m *SMTPMailer) dial(ctx context.Context) (*smtp.Client, error) {
	d := &net.Dialer{Timeout: 10 * time.Second}
	var (
		conn net.Conn
		err  error
	)
	if m.cfg.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: d, Config: &tls.Config{ServerName: m.cfg.Host}}).DialContext(ctx, "tcp", m.addr())
	} else {
		conn, err = d.DialContext(ctx, "tcp", m.addr())
	}
	if err != nil {
		return nil, err
	}
	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if m.cfg.Port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				_ = c.Close()
				return nil, err
			}
		}
	}
	if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// verify 首次发送前验证一次连接，结果只记日志
func (m *SMTPMailer) verify(ctx context.Context) {
	m.verifyOnce.Do(func() {
		c, err := m.dial(ctx)
		if err != nil {
			m.log.Error("mail server verification failed", zap.String("addr", m.addr()), zap.Error(err))
			return
		}
		_ = c.Quit()
		m.log.Info("mail server connected", zap.String("addr", m.addr()))
	})
}

func (m *SMTPMailer) from() string {
	if m.cfg.From != "" {
		return m.cfg.From
	}
	return m.cfg.Username
}

func envelopeAddr(from string) string {
	if a, err := mail.ParseAddress(from); err == nil {
		return a.Address
	}
	if i, j := strings.LastIndex(from, "<"), strings.LastIndex(from, ">"); i >= 0 && j > i {
		return from[i+1 : j]
	}
	return from
}

func (m *SMTPMailer) deliver(ctx context.Context, msg []byte, to string) error {
	m.verify(ctx)
	c, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Mail(envelopeAddr(m.from())); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(from, to, subject, html string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.BEncoding.Encode("UTF-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	body, err := renderReset(resetURL)
	if err != nil {
		return err
	}
	if err := m.send(ctx, buildMessage(m.from(), to, resetSubject, body), to); err != nil {
		m.log.Error("send reset email failed", zap.String("to", to), zap.Error(err))
		return fmt.Errorf("send reset email: %w", err)
	}
	m.log.Info("reset email sent", zap.String("to", to))
	return nil
}
