// Package notify sends job results to submitters by e-mail.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"remoteq/internal/core"
)

const subject = "[CREATOR] Remote device results"

// Mailer delivers results over implicit-TLS SMTP (port 465 style).
type Mailer struct {
	Host     string
	Port     int
	Sender   string
	Password string
	Timeout  time.Duration
}

// NewMailer returns a mailer that authenticates as sender.
func NewMailer(host string, port int, sender, password string) *Mailer {
	return &Mailer{Host: host, Port: port, Sender: sender, Password: password, Timeout: 30 * time.Second}
}

// Verify logs in and out again so bad credentials are caught at startup.
func (m *Mailer) Verify(ctx context.Context) error {
	c, err := m.connect(ctx)
	if err != nil {
		return err
	}
	return c.Quit()
}

// Notify mails the result of job to job.ResultDestination with the result
// attached as remote_device_<id>.txt.
func (m *Mailer) Notify(ctx context.Context, job *core.Job) error {
	msg, err := buildMessage(m.Sender, job)
	if err != nil {
		return err
	}

	c, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Mail(m.Sender); err != nil {
		return errors.Wrap(err, "smtp MAIL")
	}
	if err := c.Rcpt(job.ResultDestination); err != nil {
		return errors.Wrap(err, "smtp RCPT")
	}
	w, err := c.Data()
	if err != nil {
		return errors.Wrap(err, "smtp DATA")
	}
	if _, err := w.Write(msg); err != nil {
		return errors.Wrap(err, "write message")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "finish message")
	}
	return c.Quit()
}

func (m *Mailer) connect(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: m.Timeout},
		Config:    &tls.Config{ServerName: m.Host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	if m.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(m.Timeout))
	}

	c, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "smtp handshake")
	}
	if err := c.Auth(smtp.PlainAuth("", m.Sender, m.Password, m.Host)); err != nil {
		_ = c.Close()
		return nil, errors.Wrap(err, "smtp login")
	}
	return c, nil
}

func buildMessage(sender string, job *core.Job) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", sender)
	fmt.Fprintf(&buf, "To: %s\r\n", job.ResultDestination)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(text, "Remote device ID=%d has finished with status %s, the execution results are attached.\r\n\r\n"+
		"Sincerely,\r\nCREATOR Team\r\n\r\nhttps://creatorsim.github.io/\r\n", job.ID, job.Status)

	att, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", attachmentName(job.ID))},
	})
	if err != nil {
		return nil, err
	}
	enc := base64.NewEncoder(base64.StdEncoding, &lineWrapper{w: att})
	if _, err := enc.Write([]byte(job.Result)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

func attachmentName(id uint64) string {
	return "remote_device_" + strconv.FormatUint(id, 10) + ".txt"
}
