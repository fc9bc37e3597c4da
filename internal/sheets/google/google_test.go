package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"duetrack/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const testSpreadsheet = "test-spreadsheet"

// fakeSheets is a tiny in-memory stand-in for the Sheets REST API covering
// the calls the client makes.
type fakeSheets struct {
	mu           sync.Mutex
	tabs         map[string][][]string
	sheetIDs     map[string]int64
	batchUpdates int
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{
		tabs:     map[string][][]string{"Bills": nil, "Payments": nil},
		sheetIDs: map[string]int64{"Bills": 11, "Payments": 22},
	}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/"+testSpreadsheet)
	switch {
	case path == "" && r.Method == http.MethodGet:
		ss := &gsheet.Spreadsheet{}
		for title, id := range f.sheetIDs {
			ss.Sheets = append(ss.Sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{SheetId: id, Title: title}})
		}
		writeJSON(w, ss)

	case path == ":batchUpdate":
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.batchUpdates++
		for _, rq := range req.Requests {
			dr := rq.DeleteDimension.Range
			tab := f.titleOf(dr.SheetId)
			rows := f.tabs[tab]
			f.tabs[tab] = append(rows[:dr.StartIndex:dr.StartIndex], rows[dr.EndIndex:]...)
		}
		writeJSON(w, &gsheet.BatchUpdateSpreadsheetResponse{})

	case strings.HasPrefix(path, "/values/"):
		rng := strings.TrimPrefix(path, "/values/")
		appending := strings.HasSuffix(rng, ":append")
		rng = strings.TrimSuffix(rng, ":append")
		tab, cells, _ := strings.Cut(rng, "!")
		startRow := rowOf(cells)

		switch {
		case r.Method == http.MethodGet:
			rows := f.tabs[tab]
			if startRow > 0 {
				rows = rows[min(startRow-1, len(rows)):min(startRow, len(rows))]
			}
			writeJSON(w, &gsheet.ValueRange{Range: rng, Values: toValues(rows)})
		case appending:
			f.tabs[tab] = append(f.tabs[tab], decodeRows(r)...)
			writeJSON(w, &gsheet.AppendValuesResponse{})
		case r.Method == http.MethodPut:
			rows := decodeRows(r)
			for len(f.tabs[tab]) < startRow {
				f.tabs[tab] = append(f.tabs[tab], nil)
			}
			f.tabs[tab][startRow-1] = rows[0]
			writeJSON(w, &gsheet.UpdateValuesResponse{})
		}

	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
	}
}

func (f *fakeSheets) titleOf(id int64) string {
	for title, sid := range f.sheetIDs {
		if sid == id {
			return title
		}
	}
	return ""
}

func (f *fakeSheets) rows(tab string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.tabs[tab]...)
}

// rowOf returns the starting row of an A1 range such as "A5:M5", or 0 for
// whole-column ranges.
func rowOf(cells string) int {
	first, _, _ := strings.Cut(cells, ":")
	n, err := strconv.Atoi(strings.TrimLeft(first, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
	if err != nil {
		return 0
	}
	return n
}

func decodeRows(r *http.Request) [][]string {
	var vr gsheet.ValueRange
	_ = json.NewDecoder(r.Body).Decode(&vr)
	out := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		out[i] = toStrings(row)
	}
	return out
}

func toValues(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = toAny(r)
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := newFakeSheets()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, Config{SpreadsheetID: testSpreadsheet}), fake
}

func testBill(id string, version int64) core.Bill {
	return core.Bill{
		ID:        id,
		Name:      "Bill " + id,
		Amount:    core.Money{Cents: 5000},
		Category:  core.Rent,
		Frequency: core.Monthly,
		StartDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
		Version:   version,
	}
}

func TestEnsureHeaders(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := c.EnsureHeaders(ctx); err != nil {
			t.Fatalf("EnsureHeaders() error = %v", err)
		}
	}
	bills := fake.rows("Bills")
	if len(bills) != 1 || bills[0][0] != "ID" || bills[0][1] != "Name" {
		t.Errorf("bills tab = %v", bills)
	}
	if payments := fake.rows("Payments"); len(payments) != 1 || payments[0][1] != "Bill ID" {
		t.Errorf("payments tab = %v", payments)
	}
}

func TestUpsertBillAppendsThenUpdates(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	if err := c.EnsureHeaders(ctx); err != nil {
		t.Fatal(err)
	}

	if err := c.UpsertBill(ctx, testBill("b1", 1)); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := c.UpsertBill(ctx, testBill("b2", 1)); err != nil {
		t.Fatalf("second bill: %v", err)
	}
	updated := testBill("b1", 2)
	updated.Name = "Rent"
	if err := c.UpsertBill(ctx, updated); err != nil {
		t.Fatalf("update upsert: %v", err)
	}

	rows := fake.rows("Bills")
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %v", rows)
	}
	if rows[1][0] != "b1" || rows[1][1] != "Rent" || rows[1][11] != "2" {
		t.Errorf("b1 row not updated in place: %v", rows[1])
	}
}

func TestDeleteBillRemovesPayments(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	if err := c.EnsureHeaders(ctx); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"b1", "b2"} {
		if err := c.UpsertBill(ctx, testBill(id, 1)); err != nil {
			t.Fatal(err)
		}
	}
	for i, billID := range []string{"b1", "b2", "b1"} {
		p := core.Payment{ID: fmt.Sprintf("p%d", i), BillID: billID, Amount: core.Money{Cents: 5000},
			DatePaid: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), IsPaid: true}
		if err := c.UpsertPayment(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.DeleteBill(ctx, "b1"); err != nil {
		t.Fatalf("DeleteBill() error = %v", err)
	}

	bills := fake.rows("Bills")
	if len(bills) != 2 || bills[1][0] != "b2" {
		t.Errorf("bills tab = %v", bills)
	}
	payments := fake.rows("Payments")
	if len(payments) != 2 || payments[1][0] != "p1" {
		t.Errorf("payments tab = %v", payments)
	}

	// The row cache was invalidated: a new upsert must not overwrite b2.
	if err := c.UpsertBill(ctx, testBill("b3", 1)); err != nil {
		t.Fatal(err)
	}
	if bills := fake.rows("Bills"); len(bills) != 3 || bills[1][0] != "b2" || bills[2][0] != "b3" {
		t.Errorf("bills tab after re-add = %v", bills)
	}
}

func TestDeleteMissingRowIsNoop(t *testing.T) {
	c, fake := newTestClient(t)
	if err := c.DeletePayment(context.Background(), "missing"); err != nil {
		t.Fatalf("DeletePayment() error = %v", err)
	}
	if fake.batchUpdates != 0 {
		t.Errorf("no batch update expected, got %d", fake.batchUpdates)
	}
}

func TestUpsertWithoutID(t *testing.T) {
	c, _ := newTestClient(t)
	if err := c.UpsertPayment(context.Background(), core.Payment{BillID: "b1"}); err == nil {
		t.Error("expected error for payment without id")
	}
}

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "A"},
		{13, "M"},
		{26, "Z"},
		{27, "AA"},
		{53, "BA"},
	}
	for _, tt := range tests {
		if got := columnLetter(tt.n); got != tt.want {
			t.Errorf("columnLetter(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestNewCredentialErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing spreadsheet",
			cfg:     Config{ServiceAccountJSON: "{}"},
			wantErr: "missing spreadsheet id",
		},
		{
			name:    "no credentials",
			cfg:     Config{SpreadsheetID: "s"},
			wantErr: "missing credentials",
		},
		{
			name:    "invalid oauth client",
			cfg:     Config{SpreadsheetID: "s", OAuthClientJSON: "invalid-json", OAuthTokenJSON: `{"access_token":"t"}`},
			wantErr: "oauth config",
		},
		{
			name: "oauth client without token",
			cfg: Config{SpreadsheetID: "s",
				OAuthClientJSON: `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`},
			wantErr: "missing oauth token",
		},
		{
			name:    "unreadable service account file",
			cfg:     Config{SpreadsheetID: "s", ServiceAccountFile: "/non/existent/sa.json"},
			wantErr: "read service account",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
