package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/transport-booking/internal/model"
	"github.com/iliyamo/transport-booking/internal/repository"
)

// DefaultReportWindow is used when the caller does not give both bounds.
const DefaultReportWindow = 30 * 24 * time.Hour

// UnspecifiedMethod labels paid payments with no recorded operator.
const UnspecifiedMethod = "unspecified"

// reportStatuses are the reservation states that count as sales.
var reportStatuses = []model.ReservationStatus{model.ReservationConfirmed, model.ReservationUsed}

// ReportService builds staff sales reports. It only reads.
type ReportService struct {
	store repository.Reader
	Now   func() time.Time
}

// NewReportService wires a ReportService.
func NewReportService(store repository.Reader) *ReportService {
	return &ReportService{store: store, Now: func() time.Time { return time.Now().UTC() }}
}

// ResolvePeriod returns [start, end). Unless both bounds are given the
// trailing DefaultReportWindow ending at now is used.
func ResolvePeriod(start, end *time.Time, now time.Time) (time.Time, time.Time, error) {
	if start == nil || end == nil {
		return now.Add(-DefaultReportWindow), now, nil
	}
	if !start.Before(*end) {
		return time.Time{}, time.Time{}, invalid("report start must be before end")
	}
	return start.UTC(), end.UTC(), nil
}

// SalesReport aggregates confirmed and used reservations and paid
// payments created in the period.
func (s *ReportService) SalesReport(ctx context.Context, actor model.Actor, start, end *time.Time) (*model.SalesReport, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: reports are available to staff only", ErrForbidden)
	}
	from, to, err := ResolvePeriod(start, end, s.Now())
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ReservationsCreatedBetween(ctx, from, to, reportStatuses)
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}
	payments, err := s.store.PaymentsCreatedBetween(ctx, from, to, model.PaymentPaid)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	rep := AggregateSales(from, to, rows, payments)
	return &rep, nil
}

// AggregateSales is the pure aggregation behind SalesReport. Rows outside
// [start, end) or in a non-sales status are ignored, so callers may pass
// unfiltered input.
func AggregateSales(start, end time.Time, rows []model.ReservationRow, payments []model.Payment) model.SalesReport {
	rep := model.SalesReport{
		Start:                 start,
		End:                   end,
		DailyTotals:           []model.DailyTotal{},
		TotalsByPaymentMethod: []model.MethodTotal{},
	}
	counted := map[model.ReservationStatus]bool{}
	for _, st := range reportStatuses {
		counted[st] = true
	}
	inPeriod := func(t time.Time) bool { return !t.Before(start) && t.Before(end) }

	days := map[string]*model.DailyTotal{}
	for _, r := range rows {
		if !counted[r.Status] || !inPeriod(r.CreatedAt) {
			continue
		}
		key := r.CreatedAt.UTC().Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &model.DailyTotal{Day: key}
			days[key] = d
		}
		d.Total += r.TotalAmount
		d.Count++
		rep.GrandTotal += r.TotalAmount
		rep.ReservationCount++
	}
	for _, d := range days {
		rep.DailyTotals = append(rep.DailyTotals, *d)
	}
	sort.Slice(rep.DailyTotals, func(i, j int) bool { return rep.DailyTotals[i].Day < rep.DailyTotals[j].Day })

	methods := map[string]*model.MethodTotal{}
	for _, p := range payments {
		if p.Status != model.PaymentPaid || !inPeriod(p.CreatedAt) {
			continue
		}
		name := UnspecifiedMethod
		if p.Operator != nil && *p.Operator != "" {
			name = string(*p.Operator)
		}
		m, ok := methods[name]
		if !ok {
			m = &model.MethodTotal{Method: name}
			methods[name] = m
		}
		m.Total += p.Amount
		m.Count++
	}
	for _, m := range methods {
		rep.TotalsByPaymentMethod = append(rep.TotalsByPaymentMethod, *m)
	}
	sort.Slice(rep.TotalsByPaymentMethod, func(i, j int) bool {
		a, b := rep.TotalsByPaymentMethod[i], rep.TotalsByPaymentMethod[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Method < b.Method
	})
	return rep
}
