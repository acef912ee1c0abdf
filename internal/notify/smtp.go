package notify

import (
	"bytes"
	"context"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/gomail.v2"
)

// SMTPSender delivers report emails over plain SMTP. It is the fallback
// transport when Resend is not configured. SMTP has no message ids, so
// SendReport returns an empty external id on success.
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
}

// NewSMTPSender creates a Sender that dials the given SMTP server per send.
func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{host: host, port: port, user: user, password: password, from: from}
}

func (s *SMTPSender) SendReport(ctx context.Context, email ReportEmail) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "notify: smtp send cancelled")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", reportSubject(email.DOTNumber))
	m.SetBody("text/html", reportBody(email.FirstName))
	m.Attach(reportFilename(email.DOTNumber),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := io.Copy(w, bytes.NewReader(email.Report))
			return err
		}))

	d := gomail.NewDialer(s.host, s.port, s.user, s.password)
	if err := d.DialAndSend(m); err != nil {
		return "", eris.Wrapf(err, "notify: smtp send to %s", email.To)
	}
	return "", nil
}
