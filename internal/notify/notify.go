// Package notify delivers audit reports and manages nurture-list membership.
package notify

import (
	"context"
	"fmt"

	"github.com/sells-group/fleetaudit/internal/model"
)

// ReportEmail is a rendered audit brief addressed to a lead.
type ReportEmail struct {
	To        string
	FirstName string
	DOTNumber string
	Report    []byte
}

// Sender delivers a report email. Implementations return an opaque provider
// message id when available.
type Sender interface {
	SendReport(ctx context.Context, email ReportEmail) (string, error)
}

// ListService adds a lead to the nurture list.
type ListService interface {
	Subscribe(ctx context.Context, lead *model.Lead) (string, error)
}

// reportSubject builds the subject line for a report delivery.
func reportSubject(dotNumber string) string {
	return fmt.Sprintf("Your Fleet Risk Audit (DOT %s)", dotNumber)
}

// reportFilename names the attached brief.
func reportFilename(dotNumber string) string {
	return fmt.Sprintf("fleet_audit_%s.html", dotNumber)
}

// reportBody is the HTML email body wrapping the attached brief.
func reportBody(firstName string) string {
	if firstName == "" {
		firstName = "there"
	}
	return fmt.Sprintf(`<p>Hi %s,</p>
<p>Your confidential fleet valuation defense report is attached. It covers your
current safety scorecard, estimated monthly revenue leakage, and the risk flags
an insurance underwriter would act on.</p>
<p>Reply to this email to book your audit walkthrough.</p>`, firstName)
}
