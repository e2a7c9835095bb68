// Package memstore is an in-memory database.Store. Transactions are
// serialised by a single mutex and work on a copy of the state that replaces
// the live state only when the transaction function succeeds.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adibqt/LibroTrack/internal/database"
	"github.com/adibqt/LibroTrack/internal/models"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type state struct {
	books        map[int64]models.Book
	members      map[int64]models.Member
	loans        map[int64]models.Loan
	reservations map[int64]models.Reservation
	fines        map[int64]models.Fine
	history      []models.ReservationHistory

	bookSeq, loanSeq, reservationSeq, fineSeq, historySeq int64
}

func newState() *state {
	return &state{
		books:        make(map[int64]models.Book),
		members:      make(map[int64]models.Member),
		loans:        make(map[int64]models.Loan),
		reservations: make(map[int64]models.Reservation),
		fines:        make(map[int64]models.Fine),
	}
}

func (s *state) clone() *state {
	c := *s
	c.books = cloneMap(s.books)
	c.members = cloneMap(s.members)
	c.loans = cloneMap(s.loans)
	c.reservations = cloneMap(s.reservations)
	c.fines = cloneMap(s.fines)
	c.history = append([]models.ReservationHistory(nil), s.history...)
	return &c
}

func cloneMap[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store is the in-memory implementation of database.Store
type Store struct {
	*querier
	mu sync.RWMutex
	st *state
}

var _ database.Store = (*Store)(nil)

func New() *Store {
	s := &Store{st: newState()}
	s.querier = &querier{st: s.st, mu: &s.mu}
	return s
}

func (s *Store) InTx(ctx context.Context, fn func(q database.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.st.clone()
	if err := fn(&querier{st: work}); err != nil {
		return err
	}
	*s.st = *work
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	return ctx.Err()
}

// AddMember registers a member record
func (s *Store) AddMember(m models.Member) models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.MaxBooksAllowed == 0 {
		m.MaxBooksAllowed = models.DefaultMaxBooksAllowed
	}
	if m.Status == "" {
		m.Status = models.MemberStatusActive
	}
	s.st.members[m.ID] = m
	return m
}

// AddBook stores a book as-is, assigning an id when none is set
func (s *Store) AddBook(b models.Book) models.Book {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == 0 {
		s.st.bookSeq++
		b.ID = s.st.bookSeq
	} else if b.ID > s.st.bookSeq {
		s.st.bookSeq = b.ID
	}
	if b.Status == "" {
		b.Status = models.StatusFor(b.AvailableCopies)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
		b.UpdatedAt = b.CreatedAt
	}
	s.st.books[b.ID] = b
	return b
}

// Loans returns every loan for bookID in id order
func (s *Store) Loans(bookID int64) []models.Loan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Loan, 0)
	for _, l := range s.st.loans {
		if l.BookID == bookID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reservations returns every reservation for bookID in id order
func (s *Store) Reservations(bookID int64) []models.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Reservation, 0)
	for _, r := range s.st.reservations {
		if r.BookID == bookID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// History returns the reservation audit trail in insertion order
func (s *Store) History() []models.ReservationHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ReservationHistory(nil), s.st.history...)
}

// querier reads and writes one state. Outside a transaction mu guards the
// live state; inside a transaction mu is nil because InTx holds the lock.
type querier struct {
	st *state
	mu *sync.RWMutex
}

func (q *querier) rlock() func() {
	if q.mu == nil {
		return func() {}
	}
	q.mu.RLock()
	return q.mu.RUnlock
}

func (q *querier) lock() func() {
	if q.mu == nil {
		return func() {}
	}
	q.mu.Lock()
	return q.mu.Unlock
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}

func truncate[T any](items []T, limit int) []T {
	if limit = clampLimit(limit); len(items) > limit {
		return items[:limit]
	}
	return items
}

// Books

func (q *querier) GetBook(_ context.Context, id int64) (models.Book, error) {
	defer q.rlock()()
	b, ok := q.st.books[id]
	if !ok {
		return models.Book{}, database.ErrNotFound
	}
	return b, nil
}

func (q *querier) GetBookForUpdate(ctx context.Context, id int64) (models.Book, error) {
	return q.GetBook(ctx, id)
}

func (q *querier) ListBooks(_ context.Context, filter models.BookFilter) ([]models.Book, error) {
	defer q.rlock()()
	term := strings.ToLower(strings.TrimSpace(filter.Query))

	out := make([]models.Book, 0)
	for _, b := range q.st.books {
		if term != "" && !strings.Contains(strings.ToLower(b.Title), term) && !strings.Contains(strings.ToLower(b.ISBN), term) {
			continue
		}
		if filter.CategoryID != nil && (b.CategoryID == nil || *b.CategoryID != *filter.CategoryID) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []models.Book{}, nil
		}
		out = out[filter.Offset:]
	}
	return truncate(out, filter.Limit), nil
}

func (q *querier) ListLowStockBooks(_ context.Context, threshold int32, limit int) ([]models.Book, error) {
	defer q.rlock()()
	out := make([]models.Book, 0)
	for _, b := range q.st.books {
		if b.AvailableCopies <= threshold {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvailableCopies != out[j].AvailableCopies {
			return out[i].AvailableCopies < out[j].AvailableCopies
		}
		return out[i].Title < out[j].Title
	})
	return truncate(out, limit), nil
}

func (q *querier) CreateBook(_ context.Context, b models.Book) (models.Book, error) {
	defer q.lock()()
	for _, existing := range q.st.books {
		if existing.ISBN == b.ISBN {
			return models.Book{}, database.ErrDuplicate
		}
	}
	q.st.bookSeq++
	b.ID = q.st.bookSeq
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	q.st.books[b.ID] = b
	return b, nil
}

func (q *querier) UpdateBook(_ context.Context, b models.Book) (models.Book, error) {
	defer q.lock()()
	current, ok := q.st.books[b.ID]
	if !ok {
		return models.Book{}, database.ErrNotFound
	}
	for _, existing := range q.st.books {
		if existing.ID != b.ID && existing.ISBN == b.ISBN {
			return models.Book{}, database.ErrDuplicate
		}
	}
	b.CreatedAt = current.CreatedAt
	b.UpdatedAt = time.Now().UTC()
	q.st.books[b.ID] = b
	return b, nil
}

func (q *querier) SetBookCopies(_ context.Context, id int64, total, available, reserved int32, status models.BookStatus) error {
	defer q.lock()()
	b, ok := q.st.books[id]
	if !ok {
		return database.ErrNotFound
	}
	b.TotalCopies = total
	b.AvailableCopies = available
	b.ReservedCopies = reserved
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	q.st.books[id] = b
	return nil
}

// Members

func (q *querier) GetMember(_ context.Context, id int64) (models.Member, error) {
	defer q.rlock()()
	m, ok := q.st.members[id]
	if !ok {
		return models.Member{}, database.ErrNotFound
	}
	return m, nil
}

func (q *querier) GetMemberForUpdate(ctx context.Context, id int64) (models.Member, error) {
	return q.GetMember(ctx, id)
}

// Loans

func (q *querier) CreateLoan(_ context.Context, l models.Loan) (models.Loan, error) {
	defer q.lock()()
	q.st.loanSeq++
	l.ID = q.st.loanSeq
	q.st.loans[l.ID] = l
	return l, nil
}

func (q *querier) GetLoan(_ context.Context, id int64) (models.Loan, error) {
	defer q.rlock()()
	l, ok := q.st.loans[id]
	if !ok {
		return models.Loan{}, database.ErrNotFound
	}
	return l, nil
}

func (q *querier) GetLoanForUpdate(ctx context.Context, id int64) (models.Loan, error) {
	return q.GetLoan(ctx, id)
}

func (q *querier) UpdateLoanStatus(_ context.Context, id int64, status models.LoanStatus, returnDate *time.Time) error {
	defer q.lock()()
	l, ok := q.st.loans[id]
	if !ok {
		return database.ErrNotFound
	}
	l.Status = status
	l.ReturnDate = returnDate
	q.st.loans[id] = l
	return nil
}

func (q *querier) CountActiveLoans(_ context.Context, userID int64) (int, error) {
	defer q.rlock()()
	n := 0
	for _, l := range q.st.loans {
		if l.UserID == userID && l.Status == models.LoanStatusIssued {
			n++
		}
	}
	return n, nil
}

func (q *querier) ListLoansByUser(_ context.Context, userID int64, status *models.LoanStatus) ([]models.LoanDetails, error) {
	defer q.rlock()()
	out := make([]models.LoanDetails, 0)
	for _, l := range q.st.loans {
		if l.UserID != userID || (status != nil && l.Status != *status) {
			continue
		}
		b := q.st.books[l.BookID]
		out = append(out, models.LoanDetails{Loan: l, BookTitle: b.Title, ISBN: b.ISBN})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssueDate.Equal(out[j].IssueDate) {
			return out[i].IssueDate.After(out[j].IssueDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Reservations

func (q *querier) CreateReservation(_ context.Context, r models.Reservation) (models.Reservation, error) {
	defer q.lock()()
	if r.Status == models.ReservationStatusPending {
		for _, existing := range q.st.reservations {
			if existing.UserID == r.UserID && existing.BookID == r.BookID && existing.Status == models.ReservationStatusPending {
				return models.Reservation{}, database.ErrDuplicate
			}
		}
	}
	q.st.reservationSeq++
	r.ID = q.st.reservationSeq
	q.st.reservations[r.ID] = r
	return r, nil
}

func (q *querier) GetReservation(_ context.Context, id int64) (models.Reservation, error) {
	defer q.rlock()()
	r, ok := q.st.reservations[id]
	if !ok {
		return models.Reservation{}, database.ErrNotFound
	}
	return r, nil
}

func (q *querier) GetReservationForUpdate(ctx context.Context, id int64) (models.Reservation, error) {
	return q.GetReservation(ctx, id)
}

func (q *querier) FindPendingReservation(_ context.Context, userID, bookID int64) (models.Reservation, error) {
	defer q.rlock()()
	for _, r := range q.st.reservations {
		if r.UserID == userID && r.BookID == bookID && r.Status == models.ReservationStatusPending {
			return r, nil
		}
	}
	return models.Reservation{}, database.ErrNotFound
}

func (q *querier) PendingReservations(_ context.Context, bookID int64) ([]models.Reservation, error) {
	defer q.rlock()()
	var queue []models.Reservation
	for _, r := range q.st.reservations {
		if r.BookID == bookID && r.Status == models.ReservationStatusPending {
			queue = append(queue, r)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queuedBefore(queue[i], queue[j]) })
	return queue, nil
}

// queuedBefore orders holds by priority_level, reservation_date, reservation_id
func queuedBefore(a, b models.Reservation) bool {
	if a.PriorityLevel != b.PriorityLevel {
		return a.PriorityLevel < b.PriorityLevel
	}
	if !a.ReservationDate.Equal(b.ReservationDate) {
		return a.ReservationDate.Before(b.ReservationDate)
	}
	return a.ID < b.ID
}

func (q *querier) UpdateReservationStatus(_ context.Context, id int64, status models.ReservationStatus, loanID *int64) error {
	defer q.lock()()
	r, ok := q.st.reservations[id]
	if !ok {
		return database.ErrNotFound
	}
	r.Status = status
	if loanID != nil {
		r.LoanID = loanID
	}
	q.st.reservations[id] = r
	return nil
}

func (q *querier) ListReservations(_ context.Context, filter models.ReservationFilter) ([]models.ReservationDetails, error) {
	defer q.rlock()()
	out := make([]models.ReservationDetails, 0)
	for _, r := range q.st.reservations {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.UserID != nil && r.UserID != *filter.UserID {
			continue
		}
		if filter.BookID != nil && r.BookID != *filter.BookID {
			continue
		}
		m := q.st.members[r.UserID]
		b := q.st.books[r.BookID]
		out = append(out, models.ReservationDetails{
			Reservation: r,
			Username:    m.Username,
			FirstName:   m.FirstName,
			LastName:    m.LastName,
			Email:       m.Email,
			BookTitle:   b.Title,
			ISBN:        b.ISBN,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReservationDate.Equal(out[j].ReservationDate) {
			return out[i].ReservationDate.After(out[j].ReservationDate)
		}
		return out[i].ID > out[j].ID
	})
	return truncate(out, filter.Limit), nil
}

func (q *querier) ListDueReservationIDs(_ context.Context, now time.Time, limit int) ([]int64, error) {
	defer q.rlock()()
	due := make([]models.Reservation, 0)
	for _, r := range q.st.reservations {
		if r.Status == models.ReservationStatusPending && r.ExpiryDate.Before(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ExpiryDate.Equal(due[j].ExpiryDate) {
			return due[i].ExpiryDate.Before(due[j].ExpiryDate)
		}
		return due[i].ID < due[j].ID
	})
	due = truncate(due, limit)

	ids := make([]int64, len(due))
	for i, r := range due {
		ids[i] = r.ID
	}
	return ids, nil
}

func (q *querier) AppendReservationHistory(_ context.Context, h models.ReservationHistory) error {
	defer q.lock()()
	q.st.historySeq++
	h.ID = q.st.historySeq
	q.st.history = append(q.st.history, h)
	return nil
}

func (q *querier) ListReservationHistory(_ context.Context, filter models.HistoryFilter) ([]models.ReservationHistory, error) {
	defer q.rlock()()
	out := make([]models.ReservationHistory, 0)
	for i := len(q.st.history) - 1; i >= 0; i-- {
		h := q.st.history[i]
		if h.UserID != filter.UserID {
			continue
		}
		if filter.ToStatus != nil && h.ToStatus != *filter.ToStatus {
			continue
		}
		h.BookTitle = q.st.books[h.BookID].Title
		out = append(out, h)
	}
	return truncate(out, filter.Limit), nil
}

// Fines

func (q *querier) CreateFine(_ context.Context, f models.Fine) (models.Fine, error) {
	defer q.lock()()
	q.st.fineSeq++
	f.ID = q.st.fineSeq
	q.st.fines[f.ID] = f
	return f, nil
}

func (q *querier) GetFine(_ context.Context, id int64) (models.Fine, error) {
	defer q.rlock()()
	f, ok := q.st.fines[id]
	if !ok {
		return models.Fine{}, database.ErrNotFound
	}
	return f, nil
}

func (q *querier) GetFineForUpdate(ctx context.Context, id int64) (models.Fine, error) {
	return q.GetFine(ctx, id)
}

func (q *querier) UpdateFineStatus(_ context.Context, id int64, status models.FineStatus, resolvedAt time.Time) error {
	defer q.lock()()
	f, ok := q.st.fines[id]
	if !ok {
		return database.ErrNotFound
	}
	f.Status = status
	f.ResolvedAt = &resolvedAt
	q.st.fines[id] = f
	return nil
}

func (q *querier) ListFines(_ context.Context, filter models.FineFilter) ([]models.Fine, error) {
	defer q.rlock()()
	out := make([]models.Fine, 0)
	for _, f := range q.st.fines {
		if filter.UserID != nil && f.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && f.Status != *filter.Status {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FineDate.Equal(out[j].FineDate) {
			return out[i].FineDate.After(out[j].FineDate)
		}
		return out[i].ID > out[j].ID
	})
	return truncate(out, filter.Limit), nil
}

func (q *querier) SumUnpaidFines(_ context.Context, userID int64) (decimal.Decimal, error) {
	defer q.rlock()()
	total := decimal.Zero
	for _, f := range q.st.fines {
		if f.UserID == userID && f.Status == models.FineStatusUnpaid {
			total = total.Add(f.Amount)
		}
	}
	return total, nil
}
