package reports

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/invoices_backend/models"
	"github.com/xuri/excelize/v2"
)

const (
	InvoicesAttachmentName = "invoices.xlsx"
	LogAttachmentName      = "activity_log.xlsx"
	XlsxContentType        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var invoiceExportHeaders = []string{
	"Product", "Date", "Remark", "Invoice Number", "Amount",
	"Currency", "Status", "From", "To", "Uploaded At",
}

var logExportHeaders = []string{"User", "Action", "Details", "Date"}

// headerStyle is the shared export banner: brand fill, white bold, centered.
func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"102B86"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string) error {
	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, col+"1", h); err != nil {
			return err
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", style); err != nil {
		return err
	}
	// cosmetic widths only
	return f.SetColWidth(sheet, "A", lastCol, 18)
}

func newSheetFile(sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	return f, nil
}

// ExportInvoicesExcel renders the filtered invoice set as a workbook. Cell
// values reuse the listing row formats so the spreadsheet and the JSON view
// never disagree. Any write failure aborts the whole export.
func ExportInvoicesExcel(ctx context.Context, filter *models.InvoiceFilter) ([]byte, error) {

	started := time.Now()
	defer logSlowReport(ctx, "export_invoices_excel", started, nil)

	invoices, err := models.FetchInvoices(ctx, filter)
	if err != nil {
		return nil, err
	}

	sheet := "Invoices"
	f, err := newSheetFile(sheet)
	if err != nil {
		return nil, err
	}
	if err := writeHeaderRow(f, sheet, invoiceExportHeaders); err != nil {
		return nil, err
	}

	for i, inv := range invoices {
		row := inv.Row()
		values := []interface{}{
			row.Product, row.Date, row.Remark, row.InvoiceNumber, row.Amount,
			row.Currency, row.Status, row.From, row.To, row.UploadedAt,
		}
		if err := setRow(f, sheet, i+2, values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportLogExcel renders the filtered activity log, full match regardless of
// the listing window.
func ExportLogExcel(ctx context.Context, filter *models.LogFilter) ([]byte, error) {

	started := time.Now()
	defer logSlowReport(ctx, "export_log_excel", started, nil)

	entries, err := models.FetchLogEntriesForExport(ctx, filter)
	if err != nil {
		return nil, err
	}

	sheet := "Activity Log"
	f, err := newSheetFile(sheet)
	if err != nil {
		return nil, err
	}
	if err := writeHeaderRow(f, sheet, logExportHeaders); err != nil {
		return nil, err
	}

	for i, entry := range entries {
		values := []interface{}{
			entry.UsernameCache,
			string(entry.Action),
			entry.Details,
			entry.CreatedAt.Format("2006-01-02 15:04"),
		}
		if err := setRow(f, sheet, i+2, values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, rowNo int, values []interface{}) error {
	for i, value := range values {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, col+fmt.Sprint(rowNo), value); err != nil {
			return err
		}
	}
	return nil
}
