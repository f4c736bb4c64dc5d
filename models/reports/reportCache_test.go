package reports

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/invoices_backend/config"
	"bitbucket.org/mmdatafocus/invoices_backend/utils"
	"github.com/sirupsen/logrus"
)

func captureWarnings(t *testing.T) *bytes.Buffer {
	t.Helper()
	logger := config.GetLogger()
	prevOut := logger.Out
	prevLevel := logger.GetLevel()

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.WarnLevel)
	t.Cleanup(func() {
		logger.SetOutput(prevOut)
		logger.SetLevel(prevLevel)
	})
	return &buf
}

func TestLogSlowReportEmitsStructuredWarning(t *testing.T) {
	buf := captureWarnings(t)

	ctx := utils.SetCorrelationIdInContext(context.Background(), "cid-123")
	logSlowReport(ctx, "invoice_charts", time.Now().Add(-2*time.Second), map[string]any{"currency": "idr"})

	out := buf.String()
	if out == "" {
		t.Fatalf("expected a warning for a 2s report")
	}
	for _, want := range []string{"slow report", "invoice_charts", "cid-123", "currency"} {
		if !strings.Contains(out, want) {
			t.Fatalf("warning missing %q: %s", want, out)
		}
	}
}

func TestLogSlowReportStaysQuietUnderThreshold(t *testing.T) {
	buf := captureWarnings(t)

	logSlowReport(context.Background(), "invoice_charts", time.Now(), nil)
	if buf.Len() != 0 {
		t.Fatalf("unexpected warning: %s", buf.String())
	}
}
