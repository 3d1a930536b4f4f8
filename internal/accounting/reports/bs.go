package reports

import (
	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// BalanceSheet reports cumulative balances as of a date. Revenue and expense
// activity not yet closed to equity appears as current earnings.
type BalanceSheet struct {
	AsOf                      shared.Date   `json:"as_of"`
	Assets                    Section       `json:"assets"`
	Liabilities               Section       `json:"liabilities"`
	Equity                    Section       `json:"equity"`
	CurrentEarnings           shared.Amount `json:"current_earnings"`
	TotalLiabilitiesAndEquity shared.Amount `json:"total_liabilities_and_equity"`
	Balanced                  bool          `json:"balanced"`
}

// BuildBalanceSheet classifies cumulative balances.
func BuildBalanceSheet(asOf shared.Date, balances []AccountBalance) BalanceSheet {
	assets := Section{Label: "Assets"}
	liabilities := Section{Label: "Liabilities"}
	equity := Section{Label: "Equity"}
	var earnings shared.Amount

	for _, acc := range balances {
		if acc.Debit == 0 && acc.Credit == 0 {
			continue
		}
		switch acc.Type {
		case accounts.AccountTypeAsset:
			assets.add(acc)
		case accounts.AccountTypeLiability:
			liabilities.add(acc)
		case accounts.AccountTypeEquity:
			equity.add(acc)
		case accounts.AccountTypeRevenue:
			earnings += acc.Net()
		case accounts.AccountTypeExpense:
			earnings -= acc.Net()
		}
	}
	assets.sortItems()
	liabilities.sortItems()
	equity.sortItems()

	total := liabilities.Total + equity.Total + earnings
	return BalanceSheet{
		AsOf:                      asOf,
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		CurrentEarnings:           earnings,
		TotalLiabilitiesAndEquity: total,
		Balanced:                  assets.Total == total,
	}
}
