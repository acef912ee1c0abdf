package notify

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fleetaudit/internal/model"
	"github.com/sells-group/fleetaudit/pkg/resend"
)

// ResendSender delivers report emails through the Resend API.
type ResendSender struct {
	client resend.Client
	from   string
}

// NewResendSender creates a Sender backed by Resend.
func NewResendSender(client resend.Client, from string) *ResendSender {
	return &ResendSender{client: client, from: from}
}

func (s *ResendSender) SendReport(ctx context.Context, email ReportEmail) (string, error) {
	id, err := s.client.SendEmail(ctx, resend.SendEmailRequest{
		From:    s.from,
		To:      []string{email.To},
		Subject: reportSubject(email.DOTNumber),
		HTML:    reportBody(email.FirstName),
		Attachments: []resend.Attachment{
			{Filename: reportFilename(email.DOTNumber), Content: email.Report},
		},
	})
	if err != nil {
		return "", eris.Wrapf(err, "notify: send report to %s", email.To)
	}
	return id, nil
}

// ResendListService subscribes leads to a Resend audience.
type ResendListService struct {
	client     resend.Client
	audienceID string
}

// NewResendListService creates a ListService backed by a Resend audience.
func NewResendListService(client resend.Client, audienceID string) *ResendListService {
	return &ResendListService{client: client, audienceID: audienceID}
}

func (s *ResendListService) Subscribe(ctx context.Context, lead *model.Lead) (string, error) {
	id, err := s.client.CreateContact(ctx, s.audienceID, resend.CreateContactRequest{
		Email:        lead.WorkEmail,
		FirstName:    lead.FirstName(),
		LastName:     lead.LastName(),
		Unsubscribed: false,
	})
	if err != nil {
		return "", eris.Wrapf(err, "notify: subscribe %s", lead.WorkEmail)
	}
	return id, nil
}
