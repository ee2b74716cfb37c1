package storage

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/remodely/crm-voice-service/internal/domain"
)

// WriteCallSummaryPDF renders a voice call record as a one-page PDF summary
// suitable for attaching to a client file.
func WriteCallSummaryPDF(call *domain.VoiceCall, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Times", "B", 16)
	pdf.CellFormat(0, 10, "Voice Call Summary", "", 1, "", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Times", "", 11)
	writeField(pdf, "Call ID", call.ID)
	writeField(pdf, "Client ID", call.ClientID)
	writeField(pdf, "Phone", call.PhoneNumber)
	writeField(pdf, "Purpose", string(call.CallPurpose))
	writeField(pdf, "Status", string(call.Status))
	writeField(pdf, "Started", call.StartedAt.Format("2006-01-02 15:04:05"))
	if call.EndedAt != nil {
		writeField(pdf, "Ended", call.EndedAt.Format("2006-01-02 15:04:05"))
	}
	writeField(pdf, "Duration", fmt.Sprintf("%ds", call.Duration))
	if call.Simulated {
		writeField(pdf, "Mode", "simulated")
	}
	pdf.Ln(6)

	if result := call.CallResult; result != nil {
		pdf.SetFont("Times", "B", 13)
		pdf.CellFormat(0, 8, "Outcome", "", 1, "", false, 0, "")
		pdf.SetFont("Times", "", 11)
		writeField(pdf, "Sentiment", string(result.Sentiment))
		if result.AppointmentScheduled && result.AppointmentDate != nil {
			writeField(pdf, "Appointment", fmt.Sprintf("%s on %s",
				result.AppointmentType, result.AppointmentDate.Format("Jan 2, 2006 15:04")))
		}
		if result.EstimateStatus != "" {
			writeField(pdf, "Estimate", result.EstimateStatus)
		}
		if result.FollowUpRequired && result.FollowUpDate != nil {
			writeField(pdf, "Follow up", result.FollowUpDate.Format("Jan 2, 2006"))
		}
		if result.NextAction != "" {
			writeField(pdf, "Next action", result.NextAction)
		}
		if result.Notes != "" {
			pdf.Ln(2)
			pdf.MultiCell(0, 6, result.Notes, "", "", false)
		}
		pdf.Ln(6)
	}

	if transcript := strings.TrimSpace(call.Transcript); transcript != "" {
		pdf.SetFont("Times", "B", 13)
		pdf.CellFormat(0, 8, "Transcript", "", 1, "", false, 0, "")
		pdf.SetFont("Times", "", 10)
		pdf.MultiCell(0, 5, transcript, "", "", false)
	}

	pdf.SetFont("Arial", "I", 8)
	pdf.SetY(-15)
	pdf.SetX(0)
	pdf.CellFormat(0, 10, fmt.Sprintf("Generated on %s", time.Now().Format("2006-01-02 15:04:05")), "", 0, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write call summary pdf: %w", err)
	}
	return nil
}

func writeField(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Times", "B", 11)
	pdf.CellFormat(35, 6, label+":", "", 0, "", false, 0, "")
	pdf.SetFont("Times", "", 11)
	pdf.MultiCell(0, 6, value, "", "", false)
}
