package models

import (
	"bitbucket.org/mmdatafocus/invoices_backend/config"
	"bitbucket.org/mmdatafocus/invoices_backend/utils"
)

/*
caches:
	ChartReport:$currency
	FilterOptions
	InvoiceRemarkCategoryList
	Invoice:$id (instance, dropped per mutation)
*/

const FilterOptionsCacheKey = "FilterOptions"

func ChartReportCacheKey(currency Currency) string {
	return "ChartReport:" + string(currency)
}

// InvalidateInvoiceCaches drops every derived-report key. Called after each
// successful invoice or remark mutation; the next read recomputes.
func InvalidateInvoiceCaches() error {
	keys := []string{FilterOptionsCacheKey}
	for _, currency := range AllCurrencies {
		keys = append(keys, ChartReportCacheKey(currency))
	}
	if err := config.RemoveRedisKey(keys...); err != nil {
		return err
	}
	return utils.RemoveRedisList[InvoiceRemarkCategory]()
}
