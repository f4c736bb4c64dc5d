package models

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/invoices_backend/config"
	"bitbucket.org/mmdatafocus/invoices_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Invoice struct {
	ID            int                    `gorm:"primary_key" json:"id"`
	Product       string                 `gorm:"size:255;not null" json:"product"`
	Date          time.Time              `gorm:"type:date;not null;index" json:"date"`
	RemarkId      *int                   `gorm:"index" json:"remark_id"`
	Remark        *InvoiceRemarkCategory `gorm:"constraint:OnDelete:SET NULL" json:"remark,omitempty"`
	InvoiceNumber string                 `gorm:"size:100" json:"invoice_number"`
	Amount        decimal.Decimal        `gorm:"type:decimal(14,2);not null" json:"amount"`
	Currency      Currency               `gorm:"type:enum('IDR', 'USD', 'SGD');default:IDR" json:"currency"`
	Status        InvoiceStatus          `gorm:"size:30;not null;default:Unpaid;index" json:"status"`
	FromParty     string                 `gorm:"size:255" json:"from"`
	ToParty       string                 `gorm:"size:255" json:"to"`
	FileKey       string                 `gorm:"size:512" json:"file_key"`
	FileName      string                 `gorm:"size:255" json:"file_name"`
	UploadedAt    *time.Time             `json:"uploaded_at"`
	CreatedAt     time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

func (inv Invoice) RemarkName() string {
	if inv.Remark == nil {
		return "-"
	}
	return inv.Remark.Name
}

// Label identifies the invoice in audit entries.
func (inv Invoice) Label() string {
	if inv.InvoiceNumber != "" {
		return inv.InvoiceNumber
	}
	return inv.Product
}

type NewInvoice struct {
	Product       string `json:"product" form:"product"`
	Date          string `json:"date" form:"date"`
	RemarkId      string `json:"remark_id" form:"remark_id"`
	InvoiceNumber string `json:"invoice_number" form:"invoice_number"`
	Amount        string `json:"amount" form:"amount"`
	Currency      string `json:"currency" form:"currency"`
	Status        string `json:"status" form:"status"`
	FromParty     string `json:"from" form:"from"`
	ToParty       string `json:"to" form:"to"`

	// set by the upload path, not bound from the form directly
	FileKey  string `json:"file_key" form:"file_key"`
	FileName string `json:"file_name" form:"file_name"`
}

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// parseRemarkId resolves the submitted remark reference. The placeholder
// values the dropdown can send ("", "0", "-") are rejected outright.
func parseRemarkId(ctx context.Context, raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" || raw == "-" {
		return nil, utils.NewValidationError("remark is required")
	}
	if !digitsOnly.MatchString(raw) {
		return nil, utils.NewValidationError("invalid remark id")
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil, utils.NewValidationError("invalid remark id")
	}
	if _, err := utils.FetchModel[InvoiceRemarkCategory](ctx, id); err != nil {
		return nil, utils.NewValidationError("remark not found")
	}
	return &id, nil
}

// parseAmount accepts a decimal-comma rendering alongside the dot form.
func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" {
		return decimal.Zero, utils.NewValidationError("amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, utils.NewValidationError("invalid amount")
	}
	return amount, nil
}

func (input *NewInvoice) toInvoice(ctx context.Context) (*Invoice, error) {

	product := strings.TrimSpace(input.Product)
	if product == "" {
		return nil, utils.NewValidationError("product is required")
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(input.Date))
	if err != nil {
		return nil, utils.NewValidationError("invalid date")
	}

	remarkId, err := parseRemarkId(ctx, input.RemarkId)
	if err != nil {
		return nil, err
	}

	amount, err := parseAmount(input.Amount)
	if err != nil {
		return nil, err
	}

	currency := CurrencyIDR
	if input.Currency != "" {
		parsed, ok := ParseCurrency(input.Currency)
		if !ok {
			return nil, utils.NewValidationError("invalid currency")
		}
		currency = parsed
	}

	status := InvoiceStatusUnpaid
	if input.Status != "" {
		parsed, ok := ParseInvoiceStatus(input.Status)
		if !ok {
			return nil, utils.NewValidationError("invalid status")
		}
		status = parsed
	}

	invoice := Invoice{
		Product:       product,
		Date:          date,
		RemarkId:      remarkId,
		InvoiceNumber: strings.TrimSpace(input.InvoiceNumber),
		Amount:        amount,
		Currency:      currency,
		Status:        status,
		FromParty:     strings.TrimSpace(input.FromParty),
		ToParty:       strings.TrimSpace(input.ToParty),
		FileKey:       input.FileKey,
		FileName:      input.FileName,
	}
	if invoice.FileKey != "" {
		now := time.Now()
		invoice.UploadedAt = &now
	}
	return &invoice, nil
}

func CreateInvoice(ctx context.Context, input *NewInvoice) (*Invoice, error) {

	invoice, err := input.toInvoice(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(invoice).Error; err != nil {
			return err
		}
		return RecordLog(tx, ctx, LogActionCreateInvoice, LogEntityInvoice, &invoice.ID, invoice.Label(),
			fmt.Sprintf("created invoice %q (%s %s)", invoice.Label(), invoice.Amount.StringFixed(2), invoice.Currency))
	})
	if err != nil {
		return nil, err
	}

	if err := InvalidateInvoiceCaches(); err != nil {
		config.LogError(config.GetLogger(), "models", "CreateInvoice", "invalidate caches", invoice.ID, err)
	}
	return GetInvoice(ctx, invoice.ID)
}

// GetInvoice reads through the Invoice:$id instance cache; mutations drop
// the key so a warm copy never outlives the row.
func GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	cached, err := utils.RetrieveRedis[Invoice](id)
	if err != nil {
		config.LogError(config.GetLogger(), "models", "GetInvoice", "cache read", id, err)
	}
	if cached != nil {
		return cached, nil
	}

	invoice, err := utils.FetchModel[Invoice](ctx, id, "Remark")
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis[Invoice](invoice, id); err != nil {
		config.LogError(config.GetLogger(), "models", "GetInvoice", "cache write", id, err)
	}
	return invoice, nil
}

func dropInvoiceInstanceCache(funcName string, id int) {
	if err := utils.RemoveRedisItem[Invoice](id); err != nil {
		config.LogError(config.GetLogger(), "models", funcName, "drop instance cache", id, err)
	}
}

// UpdateInvoice replaces the stored row with the submitted rendering.
// Whole-row last-write-wins; no field-level merging.
func UpdateInvoice(ctx context.Context, id int, input *NewInvoice) (*Invoice, error) {

	old, err := GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := input.toInvoice(ctx)
	if err != nil {
		return nil, err
	}
	updated.ID = old.ID
	updated.CreatedAt = old.CreatedAt
	if updated.FileKey == "" {
		// no replacement file submitted; the attachment stays
		updated.FileKey = old.FileKey
		updated.FileName = old.FileName
		updated.UploadedAt = old.UploadedAt
	}

	if err := updated.loadRemark(ctx); err != nil {
		return nil, err
	}
	details := ComposeChangeDetails(old, updated)

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Remark").Save(updated).Error; err != nil {
			return err
		}
		return RecordLog(tx, ctx, LogActionUpdateInvoice, LogEntityInvoice, &updated.ID, updated.Label(), details)
	})
	if err != nil {
		return nil, err
	}

	if err := InvalidateInvoiceCaches(); err != nil {
		config.LogError(config.GetLogger(), "models", "UpdateInvoice", "invalidate caches", updated.ID, err)
	}
	dropInvoiceInstanceCache("UpdateInvoice", updated.ID)

	// replaced attachments are orphans once the row points elsewhere
	if old.FileKey != "" && old.FileKey != updated.FileKey {
		if err := utils.DeleteObjectFromGCS(ctx, old.FileKey); err != nil {
			config.LogError(config.GetLogger(), "models", "UpdateInvoice", "delete replaced attachment", old.FileKey, err)
		}
	}
	return GetInvoice(ctx, updated.ID)
}

func (inv *Invoice) loadRemark(ctx context.Context) error {
	if inv.RemarkId == nil {
		inv.Remark = nil
		return nil
	}
	remark, err := utils.FetchModel[InvoiceRemarkCategory](ctx, *inv.RemarkId)
	if err != nil {
		return err
	}
	inv.Remark = remark
	return nil
}

func DeleteInvoice(ctx context.Context, id int) (*Invoice, error) {

	invoice, err := GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Invoice{}, id).Error; err != nil {
			return err
		}
		return RecordLog(tx, ctx, LogActionDeleteInvoice, LogEntityInvoice, &invoice.ID, invoice.Label(),
			fmt.Sprintf("deleted invoice %q (%s %s)", invoice.Label(), invoice.Amount.StringFixed(2), invoice.Currency))
	})
	if err != nil {
		return nil, err
	}

	if err := InvalidateInvoiceCaches(); err != nil {
		config.LogError(config.GetLogger(), "models", "DeleteInvoice", "invalidate caches", invoice.ID, err)
	}
	dropInvoiceInstanceCache("DeleteInvoice", invoice.ID)

	if invoice.FileKey != "" {
		if err := utils.DeleteObjectFromGCS(ctx, invoice.FileKey); err != nil {
			config.LogError(config.GetLogger(), "models", "DeleteInvoice", "delete attachment", invoice.FileKey, err)
		}
	}
	return invoice, nil
}

// ChangeInvoiceStatus is the quick status-only mutation used by the listing
// row dropdown.
func ChangeInvoiceStatus(ctx context.Context, id int, status string) (*Invoice, error) {

	parsed, ok := ParseInvoiceStatus(status)
	if !ok {
		return nil, utils.NewValidationError("invalid status")
	}

	invoice, err := GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	oldStatus := invoice.Status

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Invoice{}).Where("id = ?", id).
			Update("status", parsed).Error; err != nil {
			return err
		}
		return RecordLog(tx, ctx, LogActionChangeStatus, LogEntityInvoice, &invoice.ID, invoice.Label(),
			fmt.Sprintf("status: %s → %s", oldStatus, parsed))
	})
	if err != nil {
		return nil, err
	}

	if err := InvalidateInvoiceCaches(); err != nil {
		config.LogError(config.GetLogger(), "models", "ChangeInvoiceStatus", "invalidate caches", invoice.ID, err)
	}
	dropInvoiceInstanceCache("ChangeInvoiceStatus", invoice.ID)
	invoice.Status = parsed
	return invoice, nil
}

// ComposeChangeDetails renders "field: old → new" fragments for every field
// that differs between the stored row and its replacement.
func ComposeChangeDetails(old, updated *Invoice) string {

	fragments := make([]string, 0, 8)
	add := func(field, oldVal, newVal string) {
		if oldVal != newVal {
			fragments = append(fragments, fmt.Sprintf("%s: %s → %s", field, oldVal, newVal))
		}
	}

	add("product", old.Product, updated.Product)
	add("date", old.Date.Format("2006-01-02"), updated.Date.Format("2006-01-02"))
	add("remark", old.RemarkName(), updated.RemarkName())
	add("invoice_number", old.InvoiceNumber, updated.InvoiceNumber)
	add("amount", old.Amount.StringFixed(2), updated.Amount.StringFixed(2))
	add("currency", string(old.Currency), string(updated.Currency))
	add("status", string(old.Status), string(updated.Status))
	add("from", old.FromParty, updated.FromParty)
	add("to", old.ToParty, updated.ToParty)
	add("file", old.FileName, updated.FileName)

	if len(fragments) == 0 {
		return "no field changed"
	}
	return strings.Join(fragments, "; ")
}

/* listing + filter */

type InvoiceFilter struct {
	Product   string
	RemarkId  string
	Currency  string
	Status    string
	From      string
	To        string
	DateRange string
}

// ApplyTo AND-combines every constrained dimension. "" and "ALL" leave a
// dimension unconstrained; matches are exact and case-sensitive.
func (f *InvoiceFilter) ApplyTo(dbCtx *gorm.DB) *gorm.DB {
	applies := func(v string) bool { return v != "" && v != "ALL" }

	if applies(f.Product) {
		dbCtx = dbCtx.Where("product = ?", f.Product)
	}
	if applies(f.RemarkId) && digitsOnly.MatchString(f.RemarkId) {
		dbCtx = dbCtx.Where("remark_id = ?", f.RemarkId)
	}
	if applies(f.Currency) {
		dbCtx = dbCtx.Where("currency = ?", f.Currency)
	}
	if applies(f.Status) {
		dbCtx = dbCtx.Where("status = ?", f.Status)
	}
	if applies(f.From) {
		dbCtx = dbCtx.Where("from_party = ?", f.From)
	}
	if applies(f.To) {
		dbCtx = dbCtx.Where("to_party = ?", f.To)
	}
	if start, end, ok := utils.ParseDateRange(f.DateRange); ok {
		dbCtx = dbCtx.Where("date BETWEEN ? AND ?",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return dbCtx
}

// FetchInvoices returns the filtered set, newest date first with id as the
// tiebreaker, remark preloaded.
func FetchInvoices(ctx context.Context, filter *InvoiceFilter) ([]*Invoice, error) {
	db := config.GetDB()
	var invoices []*Invoice
	if err := filter.ApplyTo(db.WithContext(ctx).Model(&Invoice{})).
		Preload("Remark").
		Order("date DESC, id DESC").
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

type InvoiceRow struct {
	ID            int    `json:"id"`
	Product       string `json:"product"`
	Date          string `json:"date"`
	Remark        string `json:"remark"`
	RemarkId      *int   `json:"remark_id"`
	InvoiceNumber string `json:"invoice_number"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	From          string `json:"from"`
	To            string `json:"to"`
	FileName      string `json:"file_name"`
	UploadedAt    string `json:"uploaded_at"`
	DownloadUrl   string `json:"download_url"`
}

// Row renders the fixed listing formats: date YYYY-MM-DD, amount with
// exactly two decimals, missing remark as "-".
func (inv *Invoice) Row() *InvoiceRow {
	row := InvoiceRow{
		ID:            inv.ID,
		Product:       inv.Product,
		Date:          inv.Date.Format("2006-01-02"),
		Remark:        inv.RemarkName(),
		RemarkId:      inv.RemarkId,
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        inv.Amount.StringFixed(2),
		Currency:      string(inv.Currency),
		Status:        string(inv.Status),
		From:          inv.FromParty,
		To:            inv.ToParty,
		FileName:      inv.FileName,
	}
	if inv.UploadedAt != nil {
		row.UploadedAt = inv.UploadedAt.Format("2006-01-02 15:04")
	}
	if inv.FileKey != "" {
		row.DownloadUrl = fmt.Sprintf("/dashboard/download/%d", inv.ID)
	}
	return &row
}

func ListInvoices(ctx context.Context, filter *InvoiceFilter) ([]*InvoiceRow, error) {
	invoices, err := FetchInvoices(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows := make([]*InvoiceRow, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, inv.Row())
	}
	return rows, nil
}

// DownloadFilename builds the attachment name offered on download:
// YYYYMMDD-PRODUCT-STATUS-REMARK-FROM_to_TO plus the stored extension,
// spaces collapsed to underscores inside each component.
func (inv *Invoice) DownloadFilename() string {
	comp := func(s string) string {
		s = strings.TrimSpace(s)
		if s == "" {
			return "-"
		}
		return strings.ReplaceAll(s, " ", "_")
	}

	ext := filepath.Ext(inv.FileName)
	if ext == "" {
		ext = filepath.Ext(inv.FileKey)
	}

	return fmt.Sprintf("%s-%s-%s-%s-%s_to_%s%s",
		inv.Date.Format("20060102"),
		comp(inv.Product),
		comp(string(inv.Status)),
		comp(inv.RemarkName()),
		comp(inv.FromParty),
		comp(inv.ToParty),
		ext,
	)
}

/* filter dropdowns */

type FilterOptions struct {
	Products   []string                 `json:"products"`
	Currencies []string                 `json:"currencies"`
	Statuses   []string                 `json:"statuses"`
	Senders    []string                 `json:"senders"`
	Receivers  []string                 `json:"receivers"`
	Remarks    []*InvoiceRemarkCategory `json:"remarks"`
}

// GetFilterOptions builds the dropdown payload from distinct invoice values.
// Ordering is case-insensitive; matching stays case-sensitive in the filter.
func GetFilterOptions(ctx context.Context) (*FilterOptions, error) {

	var options FilterOptions
	exists, err := config.GetRedisObject(FilterOptionsCacheKey, &options)
	if err != nil {
		config.LogError(config.GetLogger(), "models", "GetFilterOptions", "cache read", nil, err)
	}
	if exists {
		return &options, nil
	}

	db := config.GetDB()

	distinct := func(column string, dest *[]string) error {
		return db.WithContext(ctx).Model(&Invoice{}).
			Distinct(column).
			Where(column+" <> ''").
			Order("LOWER("+column+")").
			Pluck(column, dest).Error
	}
	if err := distinct("product", &options.Products); err != nil {
		return nil, err
	}
	if err := distinct("currency", &options.Currencies); err != nil {
		return nil, err
	}
	if err := distinct("status", &options.Statuses); err != nil {
		return nil, err
	}
	if err := distinct("from_party", &options.Senders); err != nil {
		return nil, err
	}
	if err := distinct("to_party", &options.Receivers); err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).Model(&InvoiceRemarkCategory{}).
		Where("id IN (SELECT DISTINCT remark_id FROM invoices WHERE remark_id IS NOT NULL)").
		Order("sort_order, name").
		Find(&options.Remarks).Error; err != nil {
		return nil, err
	}

	if err := config.SetRedisObject(FilterOptionsCacheKey, &options, utils.GetCacheLifespan()); err != nil {
		config.LogError(config.GetLogger(), "models", "GetFilterOptions", "cache write", nil, err)
	}
	return &options, nil
}
