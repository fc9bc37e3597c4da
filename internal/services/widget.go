package services

import (
	"sort"
	"time"

	"duetrack/internal/core"
	"duetrack/internal/recurrence"
)

// WeekSnapshotLimit caps the bills shown by the "this week" widget.
const WeekSnapshotLimit = 5

// NextBillSnapshot describes the bill due soonest.
type NextBillSnapshot struct {
	BillID    string `json:"billId"`
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	DueDate   string `json:"dueDate"`
	IsOverdue bool   `json:"isOverdue"`
}

// WeekBillSnapshot is one occurrence due in the coming week.
type WeekBillSnapshot struct {
	BillID    string `json:"billId"`
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	DueDate   string `json:"dueDate"`
	IsOverdue bool   `json:"isOverdue"`
	Category  string `json:"category"`
	IsPaid    bool   `json:"isPaid"`
}

type WidgetData struct {
	NextBill *NextBillSnapshot  `json:"nextBill"`
	ThisWeek []WeekBillSnapshot `json:"thisWeek"`
}

// BuildWidget computes both widget snapshots for the active bills.
func BuildWidget(bills []core.Bill, today time.Time, statuses *StatusCache) WidgetData {
	data := WidgetData{ThisWeek: []WeekBillSnapshot{}}

	type candidate struct {
		bill core.Bill
		st   BillStatus
	}
	var active []candidate
	byID := make(map[string]BillStatus)
	for _, b := range bills {
		if !b.IsActive {
			continue
		}
		st := statuses.Resolve(b, today)
		active = append(active, candidate{bill: b, st: st})
		byID[b.ID] = st
	}

	if len(active) > 0 {
		sort.SliceStable(active, func(i, j int) bool {
			return active[i].st.NextDueDate.Before(active[j].st.NextDueDate)
		})
		next := active[0]
		data.NextBill = &NextBillSnapshot{
			BillID:    next.bill.ID,
			Name:      next.bill.Name,
			Amount:    next.bill.Amount.String(),
			DueDate:   next.st.NextDueDate.Format(time.DateOnly),
			IsOverdue: next.st.Status == core.StatusOverdue,
		}
	}

	for _, item := range recurrence.DueWithin(bills, today, recurrence.UpcomingWindowDays) {
		if len(data.ThisWeek) == WeekSnapshotLimit {
			break
		}
		data.ThisWeek = append(data.ThisWeek, WeekBillSnapshot{
			BillID:    item.BillID,
			Name:      item.Name,
			Amount:    item.Amount.String(),
			DueDate:   item.Date.Format(time.DateOnly),
			IsOverdue: byID[item.BillID].Status == core.StatusOverdue,
			Category:  string(item.Category),
			IsPaid:    item.IsPaid,
		})
	}
	return data
}
