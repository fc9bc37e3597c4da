package sheets

import (
	"strconv"
	"time"

	"duetrack/internal/core"
)

// Column layout of the mirrored tabs. The first column always holds the
// record id so rows can be found again.
var (
	BillHeaders    = []string{"ID", "Name", "Amount", "Category", "Frequency", "Every", "Unit", "Start", "Auto-pay", "Active", "Notes", "Version", "Updated"}
	PaymentHeaders = []string{"ID", "Bill ID", "Amount", "Date paid", "Paid", "Notes"}
)

// PaymentBillColumn is the zero-based column holding a payment's bill id.
const PaymentBillColumn = 1

func BillRow(b core.Bill) []string {
	every := ""
	if b.Frequency == core.Custom && b.CustomInterval > 0 {
		every = strconv.Itoa(b.CustomInterval)
	}
	return []string{
		b.ID,
		b.Name,
		b.Amount.String(),
		string(b.Category),
		string(b.Frequency),
		every,
		string(b.CustomUnit),
		formatDate(b.StartDate),
		yesNo(b.IsAutoPay),
		yesNo(b.IsActive),
		b.Notes,
		strconv.FormatInt(b.Version, 10),
		formatTimestamp(b.UpdatedAt),
	}
}

func PaymentRow(p core.Payment) []string {
	return []string{
		p.ID,
		p.BillID,
		p.Amount.String(),
		formatDate(p.DatePaid),
		yesNo(p.IsPaid),
		p.Notes,
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateTime)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
