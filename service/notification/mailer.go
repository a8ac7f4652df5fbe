package notification

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

// Mailer sends transactional mail over SMTP. It sits entirely outside the
// booking and cancellation transactions; callers treat every send as
// best-effort.
type Mailer struct {
	host string
	port int
	user string
	pass string
}

func NewMailerFromEnv() *Mailer {
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 587
	}
	return &Mailer{
		host: os.Getenv("SMTP_HOST"),
		port: port,
		user: os.Getenv("SMTP_USER"),
		pass: os.Getenv("SMTP_PASS"),
	}
}

// Send delivers an HTML message, optionally attaching a calendar invite.
func (m *Mailer) Send(to, subject, htmlBody string, invite []byte) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.user)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if len(invite) > 0 {
		msg.Attach("invite.ics", gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(invite)
			return err
		}))
	}

	d := gomail.NewDialer(m.host, m.port, m.user, m.pass)
	return d.DialAndSend(msg)
}

// SendCode delivers a plain-text verification or reset code.
func (m *Mailer) SendCode(to, subject, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.user)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", fmt.Sprintf("Your code is: %s. Ignore this email if you did not request a code.", code))

	d := gomail.NewDialer(m.host, m.port, m.user, m.pass)
	return d.DialAndSend(msg)
}

// BuildInvite renders a minimal iCalendar event for a session.
func BuildInvite(reference, summary string, start, end time.Time) []byte {
	const stamp = "20060102T150405Z"
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//MindWell//Sessions//EN\r\n")
	b.WriteString("METHOD:REQUEST\r\n")
	b.WriteString("BEGIN:VEVENT\r\n")
	b.WriteString("UID:" + reference + "@mindwell\r\n")
	b.WriteString("DTSTAMP:" + time.Now().UTC().Format(stamp) + "\r\n")
	b.WriteString("DTSTART:" + start.UTC().Format(stamp) + "\r\n")
	b.WriteString("DTEND:" + end.UTC().Format(stamp) + "\r\n")
	b.WriteString("SUMMARY:" + summary + "\r\n")
	b.WriteString("END:VEVENT\r\n")
	b.WriteString("END:VCALENDAR\r\n")
	return []byte(b.String())
}
