package utils

import (
	"testing"
)

func TestExtractObjectKeyFromURL(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "raw key passes through", input: "invoices/2026/01/09/x.pdf", want: "invoices/2026/01/09/x.pdf"},
		{name: "raw key with traversal rejected", input: "invoices/../secrets/x.pdf", want: ""},
		{name: "gs scheme", input: "gs://my-bucket/invoices/2026/01/09/x.pdf", want: "invoices/2026/01/09/x.pdf"},
		{name: "gs scheme bucket only", input: "gs://my-bucket", want: ""},
		{name: "public gcs url", input: "https://storage.googleapis.com/my-bucket/invoices/2026/01/09/x.pdf", want: "invoices/2026/01/09/x.pdf"},
		{name: "console gcs url", input: "https://storage.cloud.google.com/my-bucket/invoices/x.pdf", want: "invoices/x.pdf"},
		{name: "virtual hosted gcs url", input: "https://my-bucket.storage.googleapis.com/invoices/x.pdf", want: "invoices/x.pdf"},
		{name: "signed url key param", input: "https://example.com/upload?key=invoices%2F2026%2F01%2F09%2Fx.pdf", want: "invoices/2026/01/09/x.pdf"},
		{name: "surrounding whitespace trimmed", input: "  invoices/2026/01/09/x.pdf  ", want: "invoices/2026/01/09/x.pdf"},
		{name: "empty", input: "", want: ""},
		{name: "unknown host without env", input: "https://cdn.example.com/my-bucket/invoices/x.pdf", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractObjectKeyFromURL(tc.input); got != tc.want {
				t.Fatalf("ExtractObjectKeyFromURL(%q) = %q; want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestExtractObjectKeyFromURLEnvPrefix(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "")
	t.Setenv("GCS_URL", "files.example.com")
	t.Setenv("GCS_BUCKET", "my-bucket")

	got := ExtractObjectKeyFromURL("https://files.example.com/my-bucket/invoices/x.pdf")
	if got != "invoices/x.pdf" {
		t.Fatalf("env-prefixed url = %q; want invoices/x.pdf", got)
	}
}

func TestBuildObjectAccessURL(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "")
	t.Setenv("GCS_URL", "storage.googleapis.com")
	t.Setenv("GCS_BUCKET", "my-bucket")

	got := BuildObjectAccessURL("invoices/x.pdf")
	want := "https://storage.googleapis.com/my-bucket/invoices/x.pdf"
	if got != want {
		t.Fatalf("BuildObjectAccessURL = %q; want %q", got, want)
	}

	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://cdn.example.com/files/")
	if got := BuildObjectAccessURL("invoices/x.pdf"); got != "https://cdn.example.com/files/invoices/x.pdf" {
		t.Fatalf("base-url override = %q", got)
	}
}
