package models

type Currency string

const (
	CurrencyIDR Currency = "IDR"
	CurrencyUSD Currency = "USD"
	CurrencySGD Currency = "SGD"
)

var AllCurrencies = []Currency{CurrencyIDR, CurrencyUSD, CurrencySGD}

func ParseCurrency(s string) (Currency, bool) {
	switch Currency(s) {
	case CurrencyIDR, CurrencyUSD, CurrencySGD:
		return Currency(s), true
	}
	return "", false
}

type InvoiceStatus string

const (
	InvoiceStatusUnpaid              InvoiceStatus = "Unpaid"
	InvoiceStatusProgress            InvoiceStatus = "Progress"
	InvoiceStatusPaidMimsRecoverable InvoiceStatus = "Paid by MIMS Recoverable"
	InvoiceStatusPaidMimsExpense     InvoiceStatus = "Paid by MIMS Expense"
	InvoiceStatusPaidByFund          InvoiceStatus = "Paid by Fund"
)

var AllInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusUnpaid,
	InvoiceStatusProgress,
	InvoiceStatusPaidMimsRecoverable,
	InvoiceStatusPaidMimsExpense,
	InvoiceStatusPaidByFund,
}

func ParseInvoiceStatus(s string) (InvoiceStatus, bool) {
	for _, status := range AllInvoiceStatuses {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}

type UserRole string

const (
	UserRoleAdmin  UserRole = "A"
	UserRoleCommon UserRole = "C"
)

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

func ParseApprovalStatus(s string) (ApprovalStatus, bool) {
	switch ApprovalStatus(s) {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected:
		return ApprovalStatus(s), true
	}
	return "", false
}

type LogAction string

const (
	LogActionCreateInvoice LogAction = "CREATE_INVOICE"
	LogActionUpdateInvoice LogAction = "UPDATE_INVOICE"
	LogActionDeleteInvoice LogAction = "DELETE_INVOICE"
	LogActionChangeStatus  LogAction = "CHANGE_STATUS"
	LogActionCreateRemark  LogAction = "CREATE_REMARK"
	LogActionDeleteRemark  LogAction = "DELETE_REMARK"
	LogActionReorderRemark LogAction = "REORDER_REMARK"
)

var AllLogActions = []LogAction{
	LogActionCreateInvoice,
	LogActionUpdateInvoice,
	LogActionDeleteInvoice,
	LogActionChangeStatus,
	LogActionCreateRemark,
	LogActionDeleteRemark,
	LogActionReorderRemark,
}

func ParseLogAction(s string) (LogAction, bool) {
	for _, action := range AllLogActions {
		if string(action) == s {
			return action, true
		}
	}
	return "", false
}

type LogEntityType string

const (
	LogEntityInvoice LogEntityType = "INVOICE"
	LogEntityRemark  LogEntityType = "REMARK"
)

// Publishing lifecycle of an audit entry in the outbox dispatcher.
type OutboxPublishStatus string

const (
	OutboxPublishStatusPending    OutboxPublishStatus = "PENDING"
	OutboxPublishStatusProcessing OutboxPublishStatus = "PROCESSING"
	OutboxPublishStatusFailed     OutboxPublishStatus = "FAILED"
	OutboxPublishStatusPublished  OutboxPublishStatus = "PUBLISHED"
	OutboxPublishStatusDead       OutboxPublishStatus = "DEAD"
)
