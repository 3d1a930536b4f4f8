package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	// maxRange bounds a single query to roughly one quarter.
	maxRange = 90 * 24 * time.Hour
)

// Service serves the audit timeline.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) check(f Filters) error {
	if err := shared.RequireCompany(f.CompanyID); err != nil {
		return err
	}
	if f.From.IsZero() || f.To.IsZero() {
		return fmt.Errorf("%w: from and to are required", shared.ErrValidation)
	}
	if f.From.After(f.To) {
		return fmt.Errorf("%w: from after to", shared.ErrValidation)
	}
	if f.To.Sub(f.From) > maxRange {
		return fmt.Errorf("%w: range exceeds 90 days", shared.ErrValidation)
	}
	return nil
}

// Timeline returns one page. It fetches a single extra row to learn whether
// another page exists instead of counting.
func (s *Service) Timeline(ctx context.Context, f Filters) (Result, error) {
	if err := s.check(f); err != nil {
		return Result{}, err
	}
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Window(ctx, f, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []Row{}
	}
	paging := Paging{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

var csvHeader = []string{"occurred_at", "actor", "action", "entity", "entity_id", "meta"}

// ExportCSV writes every matching row.
func (s *Service) ExportCSV(ctx context.Context, f Filters, w io.Writer) error {
	if err := s.check(f); err != nil {
		return err
	}
	rows, err := s.repo.All(ctx, f)
	if err != nil {
		return err
	}
	out := csv.NewWriter(w)
	if err := out.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range rows {
		meta := ""
		if len(row.Meta) > 0 {
			raw, err := json.Marshal(row.Meta)
			if err != nil {
				return err
			}
			meta = string(raw)
		}
		record := []string{row.At.UTC().Format(time.RFC3339), row.Actor, row.Action, row.Entity, row.EntityID, meta}
		if err := out.Write(record); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}
