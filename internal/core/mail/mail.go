// Package mail 发送找回密码邮件；未配置 SMTP 时只写日志
package mail

import (
	"bytes"
	"context"
	"html/template"

	"go.uber.org/zap"

	"memorial-site/internal/core/config"
)

type Mailer interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// New 启动时选定实现，之后不再切换
func New(c config.Mail, l *zap.Logger) Mailer {
	if c.Configured() {
		return NewSMTPMailer(c, l)
	}
	l.Warn("mail not configured, reset links will be written to the log")
	return &LogMailer{log: l}
}

const resetSubject = "重置您的密码"

var resetTmpl = template.Must(template.New("reset").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 30px; border-radius: 10px 10px 0 0;">
    <h1 style="color: white; margin: 0; font-size: 28px;">网络纪念馆</h1>
    <p style="color: rgba(255,255,255,0.9); margin: 10px 0 0;">密码重置请求</p>
  </div>
  <div style="background: #f9fafb; padding: 30px; border-radius: 0 0 10px 10px;">
    <p style="color: #374151; font-size: 16px;">您好，</p>
    <p style="color: #374151; font-size: 16px;">我们收到了您的密码重置请求。如果不是您本人操作，请忽略此邮件。</p>
    <p style="text-align: center; margin: 30px 0;">
      <a href="{{.URL}}" style="display: inline-block; padding: 15px 40px; background: #667eea; color: white; text-decoration: none; border-radius: 8px;">重置密码</a>
    </p>
    <p style="color: #6b7280; font-size: 14px;">或者复制以下链接到浏览器：<br><a href="{{.URL}}">{{.URL}}</a></p>
    <p style="color: #6b7280; font-size: 14px;">此链接将在 1 小时后过期。</p>
    <p style="color: #9ca3af; font-size: 12px; text-align: center;">此邮件由系统自动发送，请勿回复。</p>
  </div>
</div>`))

func renderReset(resetURL string) (string, error) {
	var buf bytes.Buffer
	if err := resetTmpl.Execute(&buf, struct{ URL string }{resetURL}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LogMailer 开发环境：把重置链接打到日志里
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(l *zap.Logger) *LogMailer { return &LogMailer{log: l} }

func (m *LogMailer) SendPasswordReset(_ context.Context, to, resetURL string) error {
	m.log.Info("password reset email (not sent)",
		zap.String("to", to),
		zap.String("subject", resetSubject),
		zap.String("reset_url", resetURL),
	)
	return nil
}
