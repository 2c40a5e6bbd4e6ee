package bigquery

import (
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/gastosmart/internal/domain"
)

// accountUpdate translates a patch into SET assignments and their parameters.
// Absent fields produce no assignment.
func accountUpdate(p domain.AccountPatch) ([]string, []bigquery.QueryParameter) {
	var (
		set    []string
		params []bigquery.QueryParameter
	)
	add := func(column string, value interface{}) {
		set = append(set, column+" = @"+column)
		params = append(params, bigquery.QueryParameter{Name: column, Value: value})
	}

	if p.Name != nil {
		add("account_name", *p.Name)
	}
	if p.Type != nil {
		add("account_type", string(*p.Type))
	}
	if p.Currency != nil {
		add("currency", string(*p.Currency))
	}
	if p.InitialBalance != nil {
		add("initial_balance", toRat(*p.InitialBalance))
	}
	if p.Icon != nil {
		add("icon", nullString(*p.Icon))
	}
	return set, params
}

// transactionUpdate translates a patch into SET assignments and their parameters.
func transactionUpdate(p domain.TransactionPatch) ([]string, []bigquery.QueryParameter) {
	var (
		set    []string
		params []bigquery.QueryParameter
	)
	add := func(column string, value interface{}) {
		set = append(set, column+" = @"+column)
		params = append(params, bigquery.QueryParameter{Name: column, Value: value})
	}

	if p.Date != nil {
		add("transaction_date", *p.Date)
	}
	if p.Amount != nil {
		add("amount", toRat(*p.Amount))
	}
	if p.Category != nil {
		add("category_name", *p.Category)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Merchant != nil {
		add("merchant", nullString(*p.Merchant))
	}
	if p.PaymentMethod != nil {
		add("payment_method", nullString(string(*p.PaymentMethod)))
	}
	return set, params
}

func joinSet(set []string) string {
	return strings.Join(set, ", ")
}
