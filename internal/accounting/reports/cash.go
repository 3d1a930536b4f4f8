package reports

import (
	"sort"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// CashAccount is the balance of one cash or bank ledger account.
type CashAccount struct {
	Code    string        `json:"code"`
	Name    string        `json:"name"`
	Subtype string        `json:"subtype"`
	Balance shared.Amount `json:"balance"`
	Display string        `json:"display"`
}

// CashSummary totals cash and bank accounts as of a date.
type CashSummary struct {
	AsOf     shared.Date   `json:"as_of"`
	Currency string        `json:"currency"`
	Accounts []CashAccount `json:"accounts"`
	Total    shared.Amount `json:"total"`
	Display  string        `json:"display_total"`
}

// BuildCashSummary keeps asset accounts whose subtype is cash or bank.
func BuildCashSummary(asOf shared.Date, currency string, balances []AccountBalance) CashSummary {
	out := CashSummary{AsOf: asOf, Currency: currency, Accounts: []CashAccount{}}
	for _, acc := range balances {
		if acc.Type != accounts.AccountTypeAsset || acc.Subtype == nil {
			continue
		}
		if *acc.Subtype != accounts.SubtypeCash && *acc.Subtype != accounts.SubtypeBank {
			continue
		}
		out.Accounts = append(out.Accounts, CashAccount{
			Code:    acc.Code,
			Name:    acc.Name,
			Subtype: *acc.Subtype,
			Balance: acc.Net(),
			Display: acc.Net().Display(),
		})
		out.Total += acc.Net()
	}
	sort.Slice(out.Accounts, func(i, j int) bool { return out.Accounts[i].Code < out.Accounts[j].Code })
	out.Display = out.Total.Display()
	return out
}
