package models

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "1500000", want: "1500000"},
		{input: "1500000.50", want: "1500000.5"},
		{input: "1500000,50", want: "1500000.5"},
		{input: "  42  ", want: "42"},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "1.2.3", wantErr: true},
	}

	for _, tc := range cases {
		got, err := parseAmount(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseAmount(%q) expected error, got %s", tc.input, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseAmount(%q): %v", tc.input, err)
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("parseAmount(%q) = %s; want %s", tc.input, got, tc.want)
		}
	}
}

func TestComposeChangeDetails(t *testing.T) {
	remarkId := 3
	old := &Invoice{
		Product:       "Server hosting",
		Date:          mustDate(t, "2026-03-01"),
		RemarkId:      &remarkId,
		Remark:        &InvoiceRemarkCategory{ID: remarkId, Name: "Infrastructure"},
		InvoiceNumber: "INV-001",
		Amount:        decimal.RequireFromString("1500000"),
		Currency:      CurrencyIDR,
		Status:        InvoiceStatusUnpaid,
		FromParty:     "Acme Hosting",
		ToParty:       "MIMS",
	}

	t.Run("no changes", func(t *testing.T) {
		clone := *old
		if got := ComposeChangeDetails(old, &clone); got != "no field changed" {
			t.Fatalf("expected sentinel for identical rows, got %q", got)
		}
	})

	t.Run("single change", func(t *testing.T) {
		updated := *old
		updated.Status = InvoiceStatusPaidByFund
		got := ComposeChangeDetails(old, &updated)
		want := "status: Unpaid → Paid by Fund"
		if got != want {
			t.Fatalf("got %q; want %q", got, want)
		}
	})

	t.Run("multiple changes joined", func(t *testing.T) {
		updated := *old
		updated.Amount = decimal.RequireFromString("1750000")
		updated.Currency = CurrencyUSD
		got := ComposeChangeDetails(old, &updated)
		if !strings.Contains(got, "amount: 1500000.00 → 1750000.00") {
			t.Fatalf("missing amount fragment in %q", got)
		}
		if !strings.Contains(got, "currency: IDR → USD") {
			t.Fatalf("missing currency fragment in %q", got)
		}
		if strings.Count(got, ";") != 1 {
			t.Fatalf("expected two fragments joined once, got %q", got)
		}
	})

	t.Run("remark rendered by name", func(t *testing.T) {
		updated := *old
		updated.RemarkId = nil
		updated.Remark = nil
		got := ComposeChangeDetails(old, &updated)
		want := "remark: Infrastructure → -"
		if got != want {
			t.Fatalf("got %q; want %q", got, want)
		}
	})
}

func TestDownloadFilename(t *testing.T) {
	inv := &Invoice{
		Product:   "Server hosting",
		Date:      mustDate(t, "2026-03-15"),
		Remark:    &InvoiceRemarkCategory{Name: "Infrastructure"},
		Status:    InvoiceStatusPaidByFund,
		FromParty: "Acme Hosting",
		ToParty:   "MIMS Jakarta",
		FileKey:   "invoices/2026/03/15/abc123.pdf",
		FileName:  "original scan.pdf",
	}

	got := inv.DownloadFilename()
	want := "20260315-Server_hosting-Paid_by_Fund-Infrastructure-Acme_Hosting_to_MIMS_Jakarta.pdf"
	if got != want {
		t.Fatalf("got %q; want %q", got, want)
	}
}

func TestDownloadFilenameEmptyComponents(t *testing.T) {
	inv := &Invoice{
		Product: "Stationery",
		Date:    mustDate(t, "2026-01-02"),
		Status:  InvoiceStatusUnpaid,
		FileKey: "invoices/2026/01/02/def456.xlsx",
	}

	got := inv.DownloadFilename()
	want := "20260102-Stationery-Unpaid----_to_-.xlsx"
	if got != want {
		t.Fatalf("got %q; want %q", got, want)
	}
}

func TestInvoiceLabelFallsBackToProduct(t *testing.T) {
	inv := Invoice{Product: "Stationery"}
	if got := inv.Label(); got != "Stationery" {
		t.Fatalf("got %q", got)
	}
	inv.InvoiceNumber = "INV-042"
	if got := inv.Label(); got != "INV-042" {
		t.Fatalf("got %q", got)
	}
}
