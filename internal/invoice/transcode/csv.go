// Package transcode serializes invoices to and from the two-section CSV
// flat-file format.
//
// The file layout is the external contract: a `# INVOICES` section with one
// row per invoice, a blank line, then a `# INVOICE ITEMS` section whose rows
// reference invoices by number. Section markers, column order and the
// yyyy-MM-dd date format must match exactly.
package transcode

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/invoro/invoro/internal/client/domain"
	"github.com/invoro/invoro/internal/cache"
	"github.com/invoro/invoro/internal/clock"
	"github.com/invoro/invoro/internal/events"
	invoicedomain "github.com/invoro/invoro/internal/invoice/domain"
	"github.com/invoro/invoro/internal/observability/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	invoiceSectionMarker = "# INVOICES"
	itemSectionMarker    = "# INVOICE ITEMS"
	dateLayout           = "2006-01-02"

	clientCacheTTL = 30 * time.Second
)

var invoiceHeader = []string{
	"invoiceNumber", "clientId", "clientName", "issueDate", "dueDate",
	"subtotal", "taxRate", "taxAmount", "totalAmount", "notes", "status",
	"currency", "exchangeRate", "paidAt",
}

var itemHeader = []string{
	"invoiceNumber", "description", "quantity", "unitPrice", "totalPrice",
}

// Transcoder exports and imports invoices in the flat-file format.
type Transcoder struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *metrics.LifecycleMetrics
	outbox  *events.Outbox

	clientCache *cache.TTLCache[int64, bool]
}

type Param struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *metrics.LifecycleMetrics `optional:"true"`
}

func New(p Param) *Transcoder {
	return &Transcoder{
		db:          p.DB,
		log:         p.Log.Named("invoice.transcode"),
		genID:       p.GenID,
		clock:       p.Clock,
		metrics:     p.Metrics,
		outbox:      events.NewOutbox(p.DB, p.GenID),
		clientCache: cache.NewTTLCache[int64, bool](),
	}
}

// Export serializes the requested invoices, or every invoice when ids is
// empty. Requested ids that do not resolve are skipped. Failures surface as
// errors; no error-document rows are ever written into the output.
func (t *Transcoder) Export(ctx context.Context, ids []snowflake.ID) ([]byte, error) {
	query := t.db.WithContext(ctx).
		Preload("Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("invoice_items.id ASC")
		}).
		Order("number ASC")
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}

	var invoices []invoicedomain.Invoice
	if err := query.Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("export invoices: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(invoiceSectionMarker + "\n")

	writer := csv.NewWriter(&buf)
	if err := writer.Write(invoiceHeader); err != nil {
		return nil, fmt.Errorf("export invoices: %w", err)
	}
	for i := range invoices {
		if err := writer.Write(invoiceRow(&invoices[i])); err != nil {
			return nil, fmt.Errorf("export invoices: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("export invoices: %w", err)
	}

	buf.WriteString("\n" + itemSectionMarker + "\n")

	writer = csv.NewWriter(&buf)
	if err := writer.Write(itemHeader); err != nil {
		return nil, fmt.Errorf("export items: %w", err)
	}
	for i := range invoices {
		for j := range invoices[i].Items {
			item := &invoices[i].Items[j]
			record := []string{
				invoices[i].Number,
				item.Description,
				item.Quantity.String(),
				item.UnitPrice.String(),
				item.TotalPrice.String(),
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("export items: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("export items: %w", err)
	}

	t.metrics.InvoicesExported(len(invoices))
	return buf.Bytes(), nil
}

// Import parses the flat file and persists its invoices, then its items.
// Malformed rows are policy-level skips, never errors: rows without an
// invoice number, with an unknown or non-positive clientId, items with an
// empty description, and items referencing a number not imported by this
// call are all silently dropped. The returned count covers invoices only.
func (t *Transcoder) Import(ctx context.Context, data []byte) (int, error) {
	sections := splitSections(data)

	invoiceRecords, err := parseSection(sections[invoiceSectionMarker])
	if err != nil {
		return 0, fmt.Errorf("import invoices: %w", err)
	}
	itemRecords, err := parseSection(sections[itemSectionMarker])
	if err != nil {
		return 0, fmt.Errorf("import items: %w", err)
	}

	// number → assigned id, scoped to this call. Items can only attach to
	// invoices imported in the same call.
	numberToID := make(map[string]snowflake.ID)
	imported := 0

	now := t.clock.Now()
	for _, record := range invoiceRecords.rows {
		inv, ok := t.invoiceFromRecord(ctx, invoiceRecords.header, record, now)
		if !ok {
			continue
		}
		// Persisted immediately, row by row, so earlier rows survive a later
		// failure.
		if err := t.db.WithContext(ctx).Create(inv).Error; err != nil {
			return imported, fmt.Errorf("import invoice %s: %w", inv.Number, err)
		}
		if err := t.outbox.Publish(ctx, events.Event{
			InvoiceID: inv.ID,
			Type:      events.EventInvoiceImported,
			Payload:   map[string]any{"number": inv.Number},
		}); err != nil {
			t.log.Warn("outbox write failed", zap.String("number", inv.Number), zap.Error(err))
		}
		numberToID[inv.Number] = inv.ID
		imported++
	}

	for _, record := range itemRecords.rows {
		item, ok := t.itemFromRecord(itemRecords.header, record, numberToID)
		if !ok {
			continue
		}
		if err := t.db.WithContext(ctx).Create(item).Error; err != nil {
			return imported, fmt.Errorf("import item for %s: %w", field(itemRecords.header, record, "invoicenumber"), err)
		}
	}

	t.metrics.InvoicesImported(imported)
	t.log.Info("csv import finished",
		zap.Int("invoices", imported),
		zap.Int("invoice_rows", len(invoiceRecords.rows)),
		zap.Int("item_rows", len(itemRecords.rows)),
	)
	return imported, nil
}

func invoiceRow(inv *invoicedomain.Invoice) []string {
	clientName := ""
	if inv.Client != nil {
		clientName = inv.Client.Name
	}
	paidAt := ""
	if inv.PaidAt != nil {
		paidAt = inv.PaidAt.UTC().Format(dateLayout)
	}
	return []string{
		inv.Number,
		strconv.FormatInt(int64(inv.ClientID), 10),
		clientName,
		inv.IssueDate.UTC().Format(dateLayout),
		inv.DueDate.UTC().Format(dateLayout),
		inv.Subtotal.String(),
		inv.TaxRate.String(),
		inv.TaxAmount.String(),
		inv.Total.String(),
		inv.Notes,
		string(inv.Status),
		inv.Currency,
		inv.ExchangeRate.String(),
		paidAt,
	}
}

func (t *Transcoder) invoiceFromRecord(ctx context.Context, header map[string]int, record []string, now time.Time) (*invoicedomain.Invoice, bool) {
	number := strings.TrimSpace(field(header, record, "invoicenumber"))
	if number == "" {
		return nil, false
	}

	clientID, err := strconv.ParseInt(strings.TrimSpace(field(header, record, "clientid")), 10, 64)
	if err != nil || clientID <= 0 {
		return nil, false
	}
	exists, err := t.resolveClient(ctx, clientID)
	if err != nil || !exists {
		return nil, false
	}

	issueDate, ok := parseDate(field(header, record, "issuedate"))
	if !ok {
		issueDate = now
	}
	dueDate, ok := parseDate(field(header, record, "duedate"))
	if !ok {
		dueDate = now.AddDate(0, 0, 30)
	}
	var paidAt *time.Time
	if when, ok := parseDate(field(header, record, "paidat")); ok {
		paidAt = &when
	}

	status, ok := invoicedomain.ParseStatus(field(header, record, "status"))
	if !ok {
		status = invoicedomain.StatusDraft
	}

	currency := strings.TrimSpace(field(header, record, "currency"))
	if currency == "" {
		currency = "USD"
	}
	exchangeRate := parseDecimal(field(header, record, "exchangerate"))
	if exchangeRate.IsZero() {
		exchangeRate = decimal.NewFromInt(1)
	}

	return &invoicedomain.Invoice{
		ID:           t.genID.Generate(),
		Number:       number,
		ClientID:     snowflake.ID(clientID),
		IssueDate:    issueDate,
		DueDate:      dueDate,
		Subtotal:     parseDecimal(field(header, record, "subtotal")),
		TaxRate:      parseDecimal(field(header, record, "taxrate")),
		TaxAmount:    parseDecimal(field(header, record, "taxamount")),
		Total:        parseDecimal(field(header, record, "totalamount")),
		Notes:        field(header, record, "notes"),
		Status:       status,
		PaidAt:       paidAt,
		Currency:     currency,
		ExchangeRate: exchangeRate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, true
}

func (t *Transcoder) itemFromRecord(header map[string]int, record []string, numberToID map[string]snowflake.ID) (*invoicedomain.InvoiceItem, bool) {
	description := strings.TrimSpace(field(header, record, "description"))
	if description == "" {
		return nil, false
	}
	number := strings.TrimSpace(field(header, record, "invoicenumber"))
	invoiceID, ok := numberToID[number]
	if !ok {
		return nil, false
	}

	quantity := parseDecimal(field(header, record, "quantity"))
	unitPrice := parseDecimal(field(header, record, "unitprice"))
	return &invoicedomain.InvoiceItem{
		ID:          t.genID.Generate(),
		InvoiceID:   invoiceID,
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		TotalPrice:  quantity.Mul(unitPrice).Round(2),
	}, true
}

func (t *Transcoder) resolveClient(ctx context.Context, id int64) (bool, error) {
	if exists, ok := t.clientCache.Get(id); ok {
		return exists, nil
	}
	var count int64
	err := t.db.WithContext(ctx).
		Model(&clientdomain.Client{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	exists := count > 0
	if exists {
		// Negative results are not cached: a client created mid-import must
		// be visible to later rows.
		t.clientCache.Set(id, true, clientCacheTTL)
	}
	return exists, nil
}

// splitSections buckets raw CSV lines by section marker. Ordering of the
// sections in the file does not matter, and repeated blocks of the same
// section concatenate.
func splitSections(data []byte) map[string][]string {
	sections := map[string][]string{}
	current := ""
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.EqualFold(trimmed, invoiceSectionMarker):
			current = invoiceSectionMarker
			continue
		case strings.EqualFold(trimmed, itemSectionMarker):
			current = itemSectionMarker
			continue
		}
		if current == "" || trimmed == "" {
			continue
		}
		sections[current] = append(sections[current], line)
	}
	return sections
}

type recordSet struct {
	header map[string]int
	rows   [][]string
}

// parseSection reads one CSV block permissively: ragged rows are accepted
// and unknown columns are ignored.
func parseSection(lines []string) (recordSet, error) {
	if len(lines) == 0 {
		return recordSet{header: map[string]int{}}, nil
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return recordSet{}, err
	}
	if len(records) == 0 {
		return recordSet{header: map[string]int{}}, nil
	}

	header := make(map[string]int, len(records[0]))
	for idx, name := range records[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = idx
	}
	return recordSet{header: header, rows: records[1:]}, nil
}

// field returns the named column of a record, tolerating missing columns
// and short rows.
func field(header map[string]int, record []string, name string) string {
	idx, ok := header[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	when, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	return when.UTC(), true
}

func parseDecimal(value string) decimal.Decimal {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}
