package reports

import (
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/invoices_backend/models"
	"github.com/shopspring/decimal"
)

// Fixed conversion table expressed as IDR base units per one unit of the
// currency. Env overrides: RATE_USD_IDR, RATE_SGD_IDR.
var defaultIdrPerUnit = map[models.Currency]string{
	models.CurrencyIDR: "1",
	models.CurrencyUSD: "16000",
	models.CurrencySGD: "12000",
}

func idrPerUnit(currency models.Currency) decimal.Decimal {
	raw := defaultIdrPerUnit[currency]

	var envKey string
	switch currency {
	case models.CurrencyUSD:
		envKey = "RATE_USD_IDR"
	case models.CurrencySGD:
		envKey = "RATE_SGD_IDR"
	}
	if envKey != "" {
		if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
			raw = v
		}
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil || !rate.IsPositive() {
		rate, _ = decimal.NewFromString(defaultIdrPerUnit[currency])
	}
	return rate
}

// ConvertAmount normalizes an amount between currencies. Same-currency
// conversion is the identity (no rounding drift); anything else hops
// through IDR.
func ConvertAmount(amount decimal.Decimal, from, to models.Currency) decimal.Decimal {
	if from == to {
		return amount
	}
	inIdr := amount.Mul(idrPerUnit(from))
	return inIdr.DivRound(idrPerUnit(to), 6)
}
