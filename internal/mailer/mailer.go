package mailer

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"fiduciaire/pkg/queue"

	"github.com/sirupsen/logrus"
)

// MaxAttempts deliveries before a message is dropped.
const MaxAttempts = 3

// Outbox the redis outbox; *queue.RedisQueue implements it.
type Outbox interface {
	DequeueMail(ctx context.Context, timeout time.Duration) (*queue.MailMessage, error)
	EnqueueMail(ctx context.Context, msg queue.MailMessage) error
}

// Sender delivers one rendered message.
type Sender interface {
	Send(to, subject, body string) error
}

// Mailer drains the outbox.
type Mailer struct {
	outbox  Outbox
	sender  Sender
	timeout time.Duration
	log     *logrus.Entry
	backoff time.Duration
}

func New(outbox Outbox, sender Sender, pollTimeout time.Duration, log *logrus.Entry) *Mailer {
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &Mailer{
		outbox:  outbox,
		sender:  sender,
		timeout: pollTimeout,
		log:     log,
		backoff: time.Second,
	}
}

// Run processes messages until ctx is cancelled.
func (m *Mailer) Run(ctx context.Context) {
	m.log.Info("Mailer started")
	defer m.log.Info("Mailer stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := m.outbox.DequeueMail(ctx, m.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.WithError(err).Error("Failed to read mail outbox")
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.backoff):
			}
			continue
		}
		if msg == nil {
			continue
		}
		m.Process(ctx, msg)
	}
}

// Process delivers msg; a failed delivery is requeued until MaxAttempts.
func (m *Mailer) Process(ctx context.Context, msg *queue.MailMessage) {
	entry := m.log.WithFields(logrus.Fields{
		"mail_id":  msg.ID,
		"template": msg.Template,
		"to":       msg.To,
	})

	body, err := renderBody(msg.Template, msg.Data)
	if err != nil {
		entry.WithError(err).Error("Dropping mail that cannot be rendered")
		return
	}
	if err := m.sender.Send(msg.To, msg.Subject, body); err != nil {
		msg.Attempts++
		if msg.Attempts >= MaxAttempts {
			entry.WithError(err).Errorf("Dropping mail after %d attempts", msg.Attempts)
			return
		}
		entry.WithError(err).Warnf("Mail delivery failed, attempt %d/%d", msg.Attempts, MaxAttempts)
		if err := m.outbox.EnqueueMail(ctx, *msg); err != nil {
			entry.WithError(err).Error("Failed to requeue mail")
		}
		return
	}
	entry.Info("Mail delivered")
}

// LogSender writes the rendered message to the log. Delivery itself is
// left to whatever relay tails that log.
type LogSender struct {
	From string
	Log  *logrus.Entry
}

func (s LogSender) Send(to, subject, body string) error {
	s.Log.WithFields(logrus.Fields{"to": to, "subject": subject}).
		Infof("Mail rendered:\n%s", BuildMessage(s.From, to, subject, body))
	return nil
}

// BuildMessage RFC 5322 message with a UTF-8 plain text body.
func BuildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	fmt.Fprintf(&b, "Date: %s\r\n\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
