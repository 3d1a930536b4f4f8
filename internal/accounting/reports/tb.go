package reports

import (
	"sort"
	"strings"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// AccountBalance is one account's posted activity over a report window.
type AccountBalance struct {
	AccountID int64                `json:"account_id"`
	Code      string               `json:"code"`
	Name      string               `json:"name"`
	Type      accounts.AccountType `json:"type"`
	Subtype   *string              `json:"subtype,omitempty"`
	Debit     shared.Amount        `json:"debit"`
	Credit    shared.Amount        `json:"credit"`
}

// Net returns the balance in the account's normal direction.
func (a AccountBalance) Net() shared.Amount {
	return a.Type.BalanceDelta(a.Debit, a.Credit)
}

// GroupKey returns the code prefix used to group trial balance rows.
func (a AccountBalance) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	if len(a.Code) >= 2 {
		return a.Code[:2]
	}
	return a.Code
}

// TrialBalanceRow is one account line of the trial balance.
type TrialBalanceRow struct {
	Code    string               `json:"code"`
	Name    string               `json:"name"`
	Type    accounts.AccountType `json:"type"`
	Debit   shared.Amount        `json:"debit"`
	Credit  shared.Amount        `json:"credit"`
	Balance shared.Amount        `json:"balance"`
}

// TrialBalanceGroup aggregates rows sharing a code prefix.
type TrialBalanceGroup struct {
	Key    string            `json:"key"`
	Rows   []TrialBalanceRow `json:"rows"`
	Debit  shared.Amount     `json:"debit"`
	Credit shared.Amount     `json:"credit"`
}

// TrialBalance lists posted debit and credit totals per account as of a date.
type TrialBalance struct {
	AsOf        shared.Date         `json:"as_of"`
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  shared.Amount       `json:"total_debit"`
	TotalCredit shared.Amount       `json:"total_credit"`
	Balanced    bool                `json:"balanced"`
	Display     string              `json:"display_total"`
}

// BuildTrialBalance groups balances by code prefix. Accounts without activity
// are omitted.
func BuildTrialBalance(asOf shared.Date, balances []AccountBalance) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, acc := range balances {
		if acc.Debit == 0 && acc.Credit == 0 {
			continue
		}
		key := acc.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key}
			groups[key] = grp
			keys = append(keys, key)
		}
		grp.Rows = append(grp.Rows, TrialBalanceRow{
			Code:    acc.Code,
			Name:    acc.Name,
			Type:    acc.Type,
			Debit:   acc.Debit,
			Credit:  acc.Credit,
			Balance: acc.Net(),
		})
		grp.Debit += acc.Debit
		grp.Credit += acc.Credit
	}

	sort.Strings(keys)
	result := TrialBalance{AsOf: asOf, Groups: []TrialBalanceGroup{}}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Rows, func(i, j int) bool { return grp.Rows[i].Code < grp.Rows[j].Code })
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit += grp.Debit
		result.TotalCredit += grp.Credit
	}
	result.Balanced = result.TotalDebit == result.TotalCredit
	result.Display = result.TotalDebit.Display()
	return result
}
