package notionsync

import (
	"time"

	"github.com/dvloznov/gastosmart/internal/currency"
	"github.com/dvloznov/gastosmart/internal/ledger"
	"github.com/jomei/notionapi"
)

// Property names of the balances database.
const (
	propAccountID   = "Account ID"
	propAccountName = "Account Name"
	propAccountType = "Account Type"
	propCurrency    = "Currency"
	propBalance     = "Balance"
	propBaseBalance = "Balance UYU"
	propDisplay     = "Display"
	propSyncedAt    = "Synced At"
)

// BalanceToNotionProperties converts an account balance to the properties of
// its row in the balances database. Amounts go out as numbers; Display holds
// the formatted balance in the account's currency.
func BalanceToNotionProperties(b ledger.AccountBalance, syncedAt time.Time) notionapi.Properties {
	acc := b.Account
	synced := notionapi.Date(syncedAt.UTC())

	props := notionapi.Properties{
		propAccountID: notionapi.TitleProperty{
			Title: richText(acc.ID),
		},
		propAccountName: notionapi.RichTextProperty{
			RichText: richText(acc.Name),
		},
		propBalance: notionapi.NumberProperty{
			Number: b.Balance.InexactFloat64(),
		},
		propBaseBalance: notionapi.NumberProperty{
			Number: b.BalanceInBase.InexactFloat64(),
		},
		propDisplay: notionapi.RichTextProperty{
			RichText: richText(currency.Format(b.Balance, acc.Currency)),
		},
		propSyncedAt: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &synced},
		},
	}

	if acc.Type != "" {
		props[propAccountType] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(acc.Type)},
		}
	}
	if acc.Currency != "" {
		props[propCurrency] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(acc.Currency)},
		}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

func extractAccountID(page notionapi.Page) string {
	if prop, ok := page.Properties[propAccountID]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
