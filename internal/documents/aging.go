package documents

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// AgingReport buckets open balances by days past due.
type AgingReport struct {
	Kind       Kind          `json:"kind"`
	AsOf       shared.Date   `json:"as_of"`
	Current    shared.Amount `json:"current"`
	Days1To30  shared.Amount `json:"days_1_30"`
	Days31To60 shared.Amount `json:"days_31_60"`
	Days61To90 shared.Amount `json:"days_61_90"`
	Over90     shared.Amount `json:"over_90"`
	Total      shared.Amount `json:"total"`
	Items      []AgingItem   `json:"items"`
}

type AgingItem struct {
	OpenItem
	DaysOverdue int    `json:"days_overdue"`
	Bucket      string `json:"bucket"`
}

// BuildAging places each open item in its bucket as of asOf.
func BuildAging(kind Kind, asOf shared.Date, items []OpenItem) AgingReport {
	report := AgingReport{Kind: kind, AsOf: asOf, Items: make([]AgingItem, 0, len(items))}
	for _, item := range items {
		if item.BalanceDue <= 0 {
			continue
		}
		days := int(asOf.Sub(item.DueDate.Time).Hours() / 24)
		var bucket string
		switch {
		case days <= 0:
			bucket = "current"
			report.Current += item.BalanceDue
		case days <= 30:
			bucket = "1-30"
			report.Days1To30 += item.BalanceDue
		case days <= 60:
			bucket = "31-60"
			report.Days31To60 += item.BalanceDue
		case days <= 90:
			bucket = "61-90"
			report.Days61To90 += item.BalanceDue
		default:
			bucket = "90+"
			report.Over90 += item.BalanceDue
		}
		report.Total += item.BalanceDue
		report.Items = append(report.Items, AgingItem{OpenItem: item, DaysOverdue: days, Bucket: bucket})
	}
	return report
}

// Aging returns the receivable or payable aging as of asOf.
func (s *Service) Aging(ctx context.Context, companyID int64, kind Kind, asOf shared.Date) (AgingReport, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return AgingReport{}, err
	}
	if !kind.Valid() {
		return AgingReport{}, fmt.Errorf("%w: unknown document kind %q", shared.ErrValidation, kind)
	}
	items, err := s.repo.OpenItems(ctx, companyID, kind)
	if err != nil {
		return AgingReport{}, err
	}
	return BuildAging(kind, asOf, items), nil
}
