// Package export writes lead data in the SmartLead import format.
package export

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fleetaudit/internal/model"
)

// smartleadHeader is the column layout SmartLead expects on import.
var smartleadHeader = []string{
	"Email", "FirstName", "LastName", "CompanyName", "Website",
	"Phone", "CustomField:FleetSize", "CustomField:Role",
	"CustomField:PainPoints", "CustomField:Qualified", "Date",
}

// WriteSmartLeadCSV writes leads as a SmartLead-importable CSV.
func WriteSmartLeadCSV(w io.Writer, leads []model.Lead) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(smartleadHeader); err != nil {
		return eris.Wrap(err, "export: write header")
	}

	for _, lead := range leads {
		row := []string{
			lead.WorkEmail,
			lead.FirstName(),
			lead.LastName(),
			lead.CompanyName,
			"", // website placeholder
			lead.Phone,
			string(lead.FleetSize),
			string(lead.Role),
			lead.PainPoints,
			lead.QualificationStatus,
			lead.CreatedAt.Format("2006-01-02"),
		}
		if err := writer.Write(row); err != nil {
			return eris.Wrapf(err, "export: write lead %s", lead.ID)
		}
	}

	writer.Flush()
	return eris.Wrap(writer.Error(), "export: flush")
}
