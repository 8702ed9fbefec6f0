package messaging

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"market-alerts/internal/adapters/htmltext"
	"market-alerts/internal/domain"
	"market-alerts/internal/infra/metrics"
)

// MailSender передаёт готовое MIME-сообщение почтовому транспорту.
type MailSender interface {
	SendMail(ctx context.Context, from string, to []string, msg []byte) error
}

// EmailProvider отправляет уведомления по электронной почте.
type EmailProvider struct {
	sender MailSender
	from   mail.Address
	now    func() time.Time
}

var _ domain.MessagingProvider = (*EmailProvider)(nil)

// NewEmailProvider создаёт email-провайдера.
func NewEmailProvider(sender MailSender, from, fromName string) *EmailProvider {
	return &EmailProvider{
		sender: sender,
		from:   mail.Address{Name: fromName, Address: from},
		now:    time.Now,
	}
}

// Name реализует domain.MessagingProvider.
func (p *EmailProvider) Name() string { return ProviderEmail }

// SupportsFormat: почта принимает и HTML, и текст.
func (p *EmailProvider) SupportsFormat(format domain.MessageFormat) bool {
	return format == domain.FormatHTML || format == domain.FormatText
}

// CanSendTo требует email у получателя.
func (p *EmailProvider) CanSendTo(recipient domain.MessageRecipient) bool {
	return strings.TrimSpace(recipient.Email) != ""
}

// Send отправляет письмо. HTML-письма дополнительно несут текстовую альтернативу.
func (p *EmailProvider) Send(ctx context.Context, recipient domain.MessageRecipient, content domain.MessageContent) domain.MessageResult {
	if err := checkSendable(p, recipient, content); err != nil {
		return domain.FailedResult(p.Name(), err)
	}
	to := mail.Address{Name: recipient.Name, Address: strings.TrimSpace(recipient.Email)}
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), addressDomain(p.from.Address))

	msg, err := p.buildMessage(to, messageID, content)
	if err != nil {
		return domain.FailedResult(p.Name(), fmt.Errorf("email: build message: %w", err))
	}
	if err := p.sender.SendMail(ctx, p.from.Address, []string{to.Address}, msg); err != nil {
		return domain.FailedResult(p.Name(), err)
	}
	return domain.MessageResult{Success: true, MessageID: messageID, ProviderName: p.Name()}
}

func (p *EmailProvider) buildMessage(to mail.Address, messageID string, content domain.MessageContent) ([]byte, error) {
	var buf bytes.Buffer
	header := textproto.MIMEHeader{}
	header.Set("From", p.from.String())
	header.Set("To", to.String())
	header.Set("Subject", mime.QEncoding.Encode("utf-8", content.Subject))
	header.Set("Message-ID", messageID)
	header.Set("Date", p.now().UTC().Format(time.RFC1123Z))
	header.Set("MIME-Version", "1.0")

	if content.Format != domain.FormatHTML {
		header.Set("Content-Type", "text/plain; charset=UTF-8")
		header.Set("Content-Transfer-Encoding", "quoted-printable")
		writeHeader(&buf, header)
		if err := writeQuotedPrintable(&buf, content.Body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header.Set("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
	writeHeader(&buf, header)

	parts := []struct {
		contentType string
		text        string
	}{
		{contentType: "text/plain; charset=UTF-8", text: htmltext.ToPlainText(content.Body)},
		{contentType: "text/html; charset=UTF-8", text: content.Body},
	}
	for _, part := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		if err := writeQuotedPrintable(w, part.text); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, header textproto.MIMEHeader) {
	for _, key := range []string{"From", "To", "Subject", "Message-ID", "Date", "MIME-Version", "Content-Type", "Content-Transfer-Encoding"} {
		if value := header.Get(key); value != "" {
			fmt.Fprintf(buf, "%s: %s\r\n", key, value)
		}
	}
	buf.WriteString("\r\n")
}

func writeQuotedPrintable(w io.Writer, text string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(text)); err != nil {
		return err
	}
	return qp.Close()
}

func addressDomain(address string) string {
	if idx := strings.LastIndex(address, "@"); idx >= 0 && idx < len(address)-1 {
		return address[idx+1:]
	}
	return "localhost"
}

// SMTPSender отправляет письма через SMTP-сервер.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	dialer   net.Dialer
}

// NewSMTPSender создаёт SMTP-транспорт. Порт 465 означает неявный TLS,
// на остальных портах используется STARTTLS, если сервер его поддерживает.
func NewSMTPSender(host string, port int, username, password string) *SMTPSender {
	return &SMTPSender{host: host, port: port, username: username, password: password, dialer: net.Dialer{Timeout: 10 * time.Second}}
}

// SendMail реализует MailSender.
func (s *SMTPSender) SendMail(ctx context.Context, from string, to []string, msg []byte) error {
	start := time.Now()
	err := s.sendMail(ctx, from, to, msg)
	metrics.ObserveNetworkRequest("smtp", "send_mail", s.host, start, err)
	return err
}

func (s *SMTPSender) sendMail(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp: dial: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}
	if s.port == 465 {
		conn = tls.Client(conn, tlsConfig)
	}
	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp: handshake: %w", err)
	}
	defer client.Close()

	if s.port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("smtp: starttls: %w", err)
			}
		}
	}
	if s.username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
				return fmt.Errorf("smtp: auth: %w", err)
			}
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp: rcpt to: %w", err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: close data: %w", err)
	}
	return client.Quit()
}
