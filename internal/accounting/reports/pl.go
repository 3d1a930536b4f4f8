package reports

import (
	"sort"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// LineItem is one account's contribution to a statement section.
type LineItem struct {
	Code   string        `json:"code"`
	Name   string        `json:"name"`
	Amount shared.Amount `json:"amount"`
}

// Section groups line items under a label.
type Section struct {
	Label string        `json:"label"`
	Items []LineItem    `json:"items"`
	Total shared.Amount `json:"total"`
}

func (s *Section) add(acc AccountBalance) {
	s.Items = append(s.Items, LineItem{Code: acc.Code, Name: acc.Name, Amount: acc.Net()})
	s.Total += acc.Net()
}

func (s *Section) sortItems() {
	if s.Items == nil {
		s.Items = []LineItem{}
	}
	sort.Slice(s.Items, func(i, j int) bool { return s.Items[i].Code < s.Items[j].Code })
}

// ProfitAndLoss reports revenue less expense for a date range.
type ProfitAndLoss struct {
	From      shared.Date   `json:"from"`
	To        shared.Date   `json:"to"`
	Revenue   Section       `json:"revenue"`
	Expense   Section       `json:"expense"`
	NetIncome shared.Amount `json:"net_income"`
}

// BuildProfitAndLoss aggregates revenue and expense activity.
func BuildProfitAndLoss(from, to shared.Date, balances []AccountBalance) ProfitAndLoss {
	revenue := Section{Label: "Revenue"}
	expense := Section{Label: "Expense"}
	for _, acc := range balances {
		if acc.Debit == 0 && acc.Credit == 0 {
			continue
		}
		switch acc.Type {
		case accounts.AccountTypeRevenue:
			revenue.add(acc)
		case accounts.AccountTypeExpense:
			expense.add(acc)
		}
	}
	revenue.sortItems()
	expense.sortItems()
	return ProfitAndLoss{
		From:      from,
		To:        to,
		Revenue:   revenue,
		Expense:   expense,
		NetIncome: revenue.Total - expense.Total,
	}
}
