package models_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/invoices_backend/config"
	"bitbucket.org/mmdatafocus/invoices_backend/models"
	"bitbucket.org/mmdatafocus/invoices_backend/utils"
)

// Every invoice and remark mutation must leave exactly one activity entry,
// written in the same transaction, and referenced remarks must refuse to die.
func TestInvoiceMutationsWriteAuditTrail(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "invoices_test")
	t.Setenv("AUDIT_TOPIC", "")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	// The activity log references a real user row.
	actor, err := models.Register(ctx, "ops@example.com", "s3cret-enough", "s3cret-enough")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx = utils.SetUserIdInContext(ctx, actor.ID)
	ctx = utils.SetUsernameInContext(ctx, actor.Username)
	ctx = utils.SetCorrelationIdInContext(ctx, "test-correlation")

	countLogs := func(action models.LogAction) int64 {
		t.Helper()
		var n int64
		if err := db.WithContext(ctx).Model(&models.LogEntry{}).
			Where("action = ?", action).Count(&n).Error; err != nil {
			t.Fatalf("count %s logs: %v", action, err)
		}
		return n
	}

	infra, err := models.AddRemark(ctx, "Infrastructure")
	if err != nil {
		t.Fatalf("AddRemark: %v", err)
	}
	if got := countLogs(models.LogActionCreateRemark); got != 1 {
		t.Fatalf("expected 1 CREATE_REMARK entry, got %d", got)
	}

	// Names are unique case-insensitively.
	if _, err := models.AddRemark(ctx, "  infrastructure "); !utils.IsConflictError(err) {
		t.Fatalf("duplicate remark: expected conflict error, got %v", err)
	}
	if got := countLogs(models.LogActionCreateRemark); got != 1 {
		t.Fatalf("failed mutation must not log, got %d entries", got)
	}

	invoice, err := models.CreateInvoice(ctx, &models.NewInvoice{
		Product:       "Server hosting",
		Date:          "2026-03-01",
		RemarkId:      fmt.Sprintf("%d", infra.ID),
		InvoiceNumber: "INV-001",
		Amount:        "1500000,50",
		Currency:      "IDR",
		FromParty:     "Acme Hosting",
		ToParty:       "MIMS",
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if invoice.Status != models.InvoiceStatusUnpaid {
		t.Fatalf("expected default Unpaid status, got %s", invoice.Status)
	}
	if invoice.Amount.StringFixed(2) != "1500000.50" {
		t.Fatalf("decimal comma amount mishandled: %s", invoice.Amount)
	}
	if got := countLogs(models.LogActionCreateInvoice); got != 1 {
		t.Fatalf("expected 1 CREATE_INVOICE entry, got %d", got)
	}

	// A referenced remark cannot be deleted; the conflict carries the count.
	_, err = models.DeleteRemark(ctx, infra.ID)
	conflict, ok := err.(*utils.ConflictError)
	if !ok {
		t.Fatalf("delete referenced remark: expected conflict error, got %v", err)
	}
	if conflict.References != 1 {
		t.Fatalf("expected 1 blocking reference, got %d", conflict.References)
	}
	if got := countLogs(models.LogActionDeleteRemark); got != 0 {
		t.Fatalf("blocked delete must not log, got %d entries", got)
	}

	// Warm the instance cache before mutating.
	if _, err := models.GetInvoice(ctx, invoice.ID); err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}

	changed, err := models.ChangeInvoiceStatus(ctx, invoice.ID, "Paid by Fund")
	if err != nil {
		t.Fatalf("ChangeInvoiceStatus: %v", err)
	}
	if changed.Status != models.InvoiceStatusPaidByFund {
		t.Fatalf("expected Paid by Fund, got %s", changed.Status)
	}
	var statusEntry models.LogEntry
	if err := db.WithContext(ctx).Where("action = ?", models.LogActionChangeStatus).
		First(&statusEntry).Error; err != nil {
		t.Fatalf("fetch CHANGE_STATUS entry: %v", err)
	}
	if !strings.Contains(statusEntry.Details, "Unpaid") || !strings.Contains(statusEntry.Details, "Paid by Fund") {
		t.Fatalf("status change details missing transition: %q", statusEntry.Details)
	}
	if statusEntry.UsernameCache != actor.Username {
		t.Fatalf("expected actor %q on entry, got %q", actor.Username, statusEntry.UsernameCache)
	}
	if statusEntry.CorrelationId != "test-correlation" {
		t.Fatalf("expected correlation id carried onto entry, got %q", statusEntry.CorrelationId)
	}

	// A fresh read must see the new status; the mutation drops the warm
	// instance cache so a stale copy cannot survive.
	reread, err := models.GetInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetInvoice after status change: %v", err)
	}
	if reread.Status != models.InvoiceStatusPaidByFund {
		t.Fatalf("cached read returned stale status %s", reread.Status)
	}

	// Reorder skips ids that resolve to nothing without consuming a position.
	travel, err := models.AddRemark(ctx, "Travel")
	if err != nil {
		t.Fatalf("AddRemark(Travel): %v", err)
	}
	// Warm the dropdown list cache; the reorder must drop it so the ordered
	// read below cannot come back stale.
	if _, err := models.ListRemarks(ctx); err != nil {
		t.Fatalf("ListRemarks: %v", err)
	}

	ordered, err := models.ReorderRemarks(ctx, []int{travel.ID, 99999, infra.ID})
	if err != nil {
		t.Fatalf("ReorderRemarks: %v", err)
	}
	if len(ordered) != 2 {
		t.Fatalf("expected 2 remarks, got %d", len(ordered))
	}
	if ordered[0].ID != travel.ID || ordered[0].SortOrder != 1 {
		t.Fatalf("expected Travel first at position 1, got id=%d order=%d", ordered[0].ID, ordered[0].SortOrder)
	}
	if ordered[1].ID != infra.ID || ordered[1].SortOrder != 2 {
		t.Fatalf("expected Infrastructure second at position 2, got id=%d order=%d", ordered[1].ID, ordered[1].SortOrder)
	}

	// Nothing resolvable is an error.
	if _, err := models.ReorderRemarks(ctx, []int{99999}); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for unresolvable order, got %v", err)
	}

	// Once the invoice is gone the remark can be deleted.
	if _, err := models.DeleteInvoice(ctx, invoice.ID); err != nil {
		t.Fatalf("DeleteInvoice: %v", err)
	}
	if _, err := models.DeleteRemark(ctx, infra.ID); err != nil {
		t.Fatalf("DeleteRemark after invoice gone: %v", err)
	}

	// The listing window sees newest first and counts the full match.
	page, err := models.ListLogEntries(ctx, &models.LogFilter{Limit: 3})
	if err != nil {
		t.Fatalf("ListLogEntries: %v", err)
	}
	// create remark, create invoice, change status, create remark, reorder,
	// delete invoice, delete remark
	if page.Total != 7 {
		t.Fatalf("expected 7 entries total, got %d", page.Total)
	}
	if len(page.Entries) != 3 {
		t.Fatalf("expected window of 3, got %d", len(page.Entries))
	}
	if page.Entries[0].Action != models.LogActionDeleteRemark {
		t.Fatalf("expected newest entry first, got %s", page.Entries[0].Action)
	}

	// Action filter narrows, total follows the filter.
	filtered, err := models.ListLogEntries(ctx, &models.LogFilter{Action: string(models.LogActionCreateRemark)})
	if err != nil {
		t.Fatalf("ListLogEntries(filtered): %v", err)
	}
	if filtered.Total != 2 {
		t.Fatalf("expected 2 CREATE_REMARK entries, got %d", filtered.Total)
	}

	// With no topic configured every entry stays queued, payload untouched.
	var pending int64
	if err := db.WithContext(ctx).Model(&models.LogEntry{}).
		Where("publish_status = ?", models.OutboxPublishStatusPending).Count(&pending).Error; err != nil {
		t.Fatalf("count pending outbox rows: %v", err)
	}
	if pending != 7 {
		t.Fatalf("expected 7 PENDING outbox rows, got %d", pending)
	}
}
