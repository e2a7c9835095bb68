package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adibqt/LibroTrack/internal/models"
)

// PopularBooks ranks books by loans issued in [from, to)
func (s *Store) PopularBooks(_ context.Context, from, to time.Time, limit int) ([]models.PopularBookDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type tally struct {
		loans int32
		users map[int64]struct{}
	}
	tallies := make(map[int64]*tally)
	for _, l := range s.st.loans {
		if l.IssueDate.Before(from) || !l.IssueDate.Before(to) {
			continue
		}
		t, ok := tallies[l.BookID]
		if !ok {
			t = &tally{users: make(map[int64]struct{})}
			tallies[l.BookID] = t
		}
		t.loans++
		t.users[l.UserID] = struct{}{}
	}

	out := make([]models.PopularBookDetail, 0, len(tallies))
	for bookID, t := range tallies {
		b := s.st.books[bookID]
		out = append(out, models.PopularBookDetail{
			BookID:      bookID,
			Title:       b.Title,
			ISBN:        b.ISBN,
			BorrowCount: t.loans,
			UniqueUsers: int32(len(t.users)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BorrowCount != out[j].BorrowCount {
			return out[i].BorrowCount > out[j].BorrowCount
		}
		return out[i].Title < out[j].Title
	})
	return truncate(out, limit), nil
}

// MemberActivity counts loans, holds and unpaid fines per member
func (s *Store) MemberActivity(_ context.Context, now time.Time, limit int) ([]models.MemberActivityDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make(map[int64]*models.MemberActivityDetail, len(s.st.members))
	for id, m := range s.st.members {
		rows[id] = &models.MemberActivityDetail{UserID: id, Username: m.Username, UnpaidFines: decimal.Zero}
	}
	for _, l := range s.st.loans {
		row, ok := rows[l.UserID]
		if !ok {
			continue
		}
		row.TotalLoans++
		if l.Status == models.LoanStatusIssued {
			row.ActiveLoans++
			if l.DueDate.Before(now) {
				row.OverdueLoans++
			}
		}
	}
	for _, r := range s.st.reservations {
		if row, ok := rows[r.UserID]; ok && r.Status == models.ReservationStatusPending {
			row.PendingReservations++
		}
	}
	for _, f := range s.st.fines {
		if row, ok := rows[f.UserID]; ok && f.Status == models.FineStatusUnpaid {
			row.UnpaidFines = row.UnpaidFines.Add(f.Amount)
		}
	}

	out := make([]models.MemberActivityDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalLoans != out[j].TotalLoans {
			return out[i].TotalLoans > out[j].TotalLoans
		}
		return out[i].Username < out[j].Username
	})
	return truncate(out, limit), nil
}

// FinesSummary groups fines by status and type
func (s *Store) FinesSummary(_ context.Context) ([]models.FinesSummaryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type bucket struct {
		status models.FineStatus
		kind   models.FineType
	}
	buckets := make(map[bucket]*models.FinesSummaryRow)
	for _, f := range s.st.fines {
		k := bucket{f.Status, f.FineType}
		row, ok := buckets[k]
		if !ok {
			row = &models.FinesSummaryRow{Status: f.Status, Type: f.FineType, Total: decimal.Zero}
			buckets[k] = row
		}
		row.Count++
		row.Total = row.Total.Add(f.Amount)
	}

	out := make([]models.FinesSummaryRow, 0, len(buckets))
	for _, row := range buckets {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}
