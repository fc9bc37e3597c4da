package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"duetrack/internal/config"
	"duetrack/internal/core"
	ports "duetrack/internal/sheets"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultCacheValidity = 30 * time.Second

// Config selects the spreadsheet, its tabs and the credentials. A service
// account takes precedence over an OAuth client and token.
type Config struct {
	SpreadsheetID string
	BillsSheet    string
	PaymentsSheet string

	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string
}

func ConfigFrom(cfg *config.Config) Config {
	return Config{
		SpreadsheetID:      strings.TrimSpace(cfg.GoogleSpreadsheetID),
		BillsSheet:         cfg.GoogleBillsSheetName,
		PaymentsSheet:      cfg.GooglePaymentsSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		OAuthClientJSON:    cfg.GoogleOAuthClientJSON,
		OAuthClientFile:    cfg.GoogleOAuthClientFile,
		OAuthTokenJSON:     cfg.GoogleOAuthTokenJSON,
		OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
	}
}

// Client mirrors bills and payments into two tabs of one spreadsheet.
// Rows are located by the id in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	billsSheet    string
	paymentsSheet string

	mu                 sync.Mutex
	sheetIDs           map[string]int64
	idColumns          map[string]idColumn
	cacheValidDuration time.Duration
}

// idColumn caches column A of a tab; ids[i] lives on row i+1.
type idColumn struct {
	ids       []string
	expiresAt time.Time
}

var _ ports.BillMirror = (*Client)(nil)

// New builds the Sheets service from cfg. Extra options are appended last
// and override the defaults.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	bills := cfg.BillsSheet
	if bills == "" {
		bills = "Bills"
	}
	payments := cfg.PaymentsSheet
	if payments == "" {
		payments = "Payments"
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      cfg.SpreadsheetID,
		billsSheet:         bills,
		paymentsSheet:      payments,
		sheetIDs:           make(map[string]int64),
		idColumns:          make(map[string]idColumn),
		cacheValidDuration: defaultCacheValidity,
	}
}

func newSheetsService(ctx context.Context, cfg Config, extra ...goption.ClientOption) (*gsheet.Service, error) {
	var opts []goption.ClientOption

	switch {
	case cfg.ServiceAccountJSON != "" || cfg.ServiceAccountFile != "":
		creds, err := inlineOrFile(cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account: %w", err)
		}
		slog.InfoContext(ctx, "Using service account credentials", "component", "sheets", "credentials_size", len(creds))
		opts = append(opts,
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope))

	case cfg.OAuthClientJSON != "" || cfg.OAuthClientFile != "":
		clientJSON, err := inlineOrFile(cfg.OAuthClientJSON, cfg.OAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client: %w", err)
		}
		oc, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("oauth config: %w", err)
		}
		if cfg.OAuthTokenJSON == "" && cfg.OAuthTokenFile == "" {
			return nil, errors.New("missing oauth token (run oauth-init first)")
		}
		tokenJSON, err := inlineOrFile(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth token: %w", err)
		}
		var tok oauth2.Token
		if err := json.Unmarshal(tokenJSON, &tok); err != nil {
			return nil, fmt.Errorf("oauth token: %w", err)
		}
		slog.InfoContext(ctx, "Using OAuth client credentials", "component", "sheets")
		// The token source refreshes through the pooled client.
		hctx := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
		opts = append(opts, goption.WithHTTPClient(oc.Client(hctx, &tok)))

	default:
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON/FILE or an OAuth client and token)")
	}

	opts = append(opts, extra...)
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func inlineOrFile(inline, path string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	return os.ReadFile(path)
}

// newHTTPClientWithPooling returns a client tuned for many small calls to
// the same Google host.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// EnsureHeaders writes the header row into any tab whose first row is empty.
func (c *Client) EnsureHeaders(ctx context.Context) error {
	for sheet, headers := range map[string][]string{
		c.billsSheet:    ports.BillHeaders,
		c.paymentsSheet: ports.PaymentHeaders,
	} {
		rng := fmt.Sprintf("%s!A1:%s1", sheet, columnLetter(len(headers)))
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("read headers of %s: %w", sheet, err)
		}
		if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
			continue
		}
		vr := &gsheet.ValueRange{Values: [][]any{toAny(headers)}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("write headers of %s: %w", sheet, err)
		}
		c.invalidate(sheet)
		slog.InfoContext(ctx, "Wrote sheet headers", "component", "sheets", "sheet", sheet)
	}
	return nil
}

func (c *Client) UpsertBill(ctx context.Context, b core.Bill) error {
	return c.upsertRow(ctx, c.billsSheet, b.ID, ports.BillRow(b))
}

// DeleteBill removes the bill row and every payment row of the bill.
func (c *Client) DeleteBill(ctx context.Context, billID string) error {
	if err := c.deleteRows(ctx, c.paymentsSheet, ports.PaymentBillColumn, billID); err != nil {
		return err
	}
	return c.deleteRows(ctx, c.billsSheet, 0, billID)
}

func (c *Client) UpsertPayment(ctx context.Context, p core.Payment) error {
	return c.upsertRow(ctx, c.paymentsSheet, p.ID, ports.PaymentRow(p))
}

func (c *Client) DeletePayment(ctx context.Context, paymentID string) error {
	return c.deleteRows(ctx, c.paymentsSheet, 0, paymentID)
}

func (c *Client) upsertRow(ctx context.Context, sheet, id string, cells []string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if id == "" {
		return errors.New("cannot mirror a record without id")
	}

	ids, err := c.idColumn(ctx, sheet)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{toAny(cells)}}
	last := columnLetter(len(cells))

	if i := slices.Index(ids, id); i >= 0 {
		row := i + 1
		rng := fmt.Sprintf("%s!A%d:%s%d", sheet, row, last, row)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		slog.DebugContext(ctx, "Updated mirrored row", "component", "sheets", "sheet", sheet, "id", id, "row", row)
		return nil
	}

	rng := fmt.Sprintf("%s!A:%s", sheet, last)
	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	c.invalidate(sheet)
	slog.DebugContext(ctx, "Appended mirrored row", "component", "sheets", "sheet", sheet, "id", id)
	return nil
}

// deleteRows removes every row whose cell in column col equals value.
func (c *Client) deleteRows(ctx context.Context, sheet string, col int, value string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:%s", sheet, columnLetter(col+1))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	var rows []int64
	for i, r := range resp.Values {
		cells := toStrings(r)
		if col < len(cells) && cells[col] == value {
			rows = append(rows, int64(i))
		}
	}
	if len(rows) == 0 {
		return nil
	}

	sheetID, err := c.sheetID(ctx, sheet)
	if err != nil {
		return err
	}

	// Delete bottom-up so earlier indexes stay valid.
	slices.Reverse(rows)
	reqs := make([]*gsheet.Request, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: r,
					EndIndex:   r + 1,
				},
			},
		})
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	c.invalidate(sheet)
	if err != nil {
		return fmt.Errorf("delete rows from %s: %w", sheet, err)
	}
	slog.DebugContext(ctx, "Deleted mirrored rows", "component", "sheets", "sheet", sheet, "value", value, "rows", len(rows))
	return nil
}

func (c *Client) idColumn(ctx context.Context, sheet string) ([]string, error) {
	c.mu.Lock()
	cached, ok := c.idColumns[sheet]
	c.mu.Unlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.ids, nil
	}

	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	ids := make([]string, len(resp.Values))
	for i, r := range resp.Values {
		if cells := toStrings(r); len(cells) > 0 {
			ids[i] = cells[0]
		}
	}

	c.mu.Lock()
	c.idColumns[sheet] = idColumn{ids: ids, expiresAt: time.Now().Add(c.cacheValidDuration)}
	c.mu.Unlock()
	return ids, nil
}

func (c *Client) invalidate(sheet string) {
	c.mu.Lock()
	delete(c.idColumns, sheet)
	c.mu.Unlock()
}

func (c *Client) sheetID(ctx context.Context, sheet string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[sheet]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			c.sheetIDs[s.Properties.Title] = s.Properties.SheetId
		}
	}
	id, ok = c.sheetIDs[sheet]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found in spreadsheet", sheet)
	}
	return id, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// columnLetter converts a 1-based column number to its A1 letter(s).
func columnLetter(n int) string {
	var s []byte
	for n > 0 {
		n--
		s = append([]byte{byte('A' + n%26)}, s...)
		n /= 26
	}
	return string(s)
}
