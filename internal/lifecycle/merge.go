package lifecycle

import (
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/receipt"
)

// MergeReceipt fills a draft from a receipt scan. Only fields the scan
// found overwrite the draft, so values the user already typed survive an
// incomplete scan. The draft always becomes an expense; if the receipt
// names a currency, the first account in that currency becomes the source.
func MergeReceipt(d Draft, data receipt.Data, accounts []domain.Account) Draft {
	if data.Total != nil {
		d.Amount = data.Total.String()
	}
	if data.Description != "" {
		d.Description = data.Description
	}
	if data.Merchant != "" {
		d.Merchant = data.Merchant
	}
	if data.Date != nil {
		d.Date = data.Date.String()
	}
	if data.Category != "" {
		d.Category = receipt.SnapCategory(data.Category)
	}

	d.Type = domain.Expense
	d.ToAccountID = ""

	if data.Currency != "" {
		for _, a := range accounts {
			if a.Currency == data.Currency {
				d.AccountID = a.ID
				break
			}
		}
	}
	return d
}
