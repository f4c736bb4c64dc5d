package reports

import (
	"testing"

	"bitbucket.org/mmdatafocus/invoices_backend/models"
	"github.com/shopspring/decimal"
)

func TestConvertAmountIdentity(t *testing.T) {
	amount := decimal.RequireFromString("123.4567891")
	for _, currency := range models.AllCurrencies {
		got := ConvertAmount(amount, currency, currency)
		if !got.Equal(amount) {
			t.Fatalf("identity conversion changed value for %s: %s", currency, got)
		}
	}
}

func TestConvertAmountDefaultRates(t *testing.T) {
	t.Setenv("RATE_USD_IDR", "")
	t.Setenv("RATE_SGD_IDR", "")

	cases := []struct {
		name   string
		amount string
		from   models.Currency
		to     models.Currency
		want   string
	}{
		{"usd to idr", "2", models.CurrencyUSD, models.CurrencyIDR, "32000"},
		{"sgd to idr", "1.5", models.CurrencySGD, models.CurrencyIDR, "18000"},
		{"idr to usd", "16000", models.CurrencyIDR, models.CurrencyUSD, "1"},
		{"usd to sgd via idr", "3", models.CurrencyUSD, models.CurrencySGD, "4"},
		{"idr to sgd rounds to 6dp", "1", models.CurrencyIDR, models.CurrencySGD, "0.000083"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tc.amount)
			want := decimal.RequireFromString(tc.want)
			got := ConvertAmount(amount, tc.from, tc.to)
			if !got.Equal(want) {
				t.Fatalf("ConvertAmount(%s, %s, %s) = %s; want %s",
					tc.amount, tc.from, tc.to, got, want)
			}
		})
	}
}

func TestConvertAmountEnvOverride(t *testing.T) {
	t.Setenv("RATE_USD_IDR", "15000")

	got := ConvertAmount(decimal.NewFromInt(2), models.CurrencyUSD, models.CurrencyIDR)
	if !got.Equal(decimal.NewFromInt(30000)) {
		t.Fatalf("expected override rate to apply, got %s", got)
	}
}

func TestConvertAmountBadOverrideFallsBack(t *testing.T) {
	t.Setenv("RATE_USD_IDR", "not-a-number")

	got := ConvertAmount(decimal.NewFromInt(1), models.CurrencyUSD, models.CurrencyIDR)
	if !got.Equal(decimal.NewFromInt(16000)) {
		t.Fatalf("expected default rate on bad override, got %s", got)
	}
}
