// Package memory is an in-process implementation of the repository interfaces.
// It backs the memory storage driver and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/loan-workflow/internal/domain"
	"github.com/segyhp/loan-workflow/internal/repository"
)

type txKey struct{}

// Store keeps customers, applications and blacklist entries in maps.
// WithTx serialises units of work and restores a snapshot when fn fails.
type Store struct {
	txMu sync.Mutex

	mu           sync.RWMutex
	customers    map[uuid.UUID]domain.Customer
	applications map[uuid.UUID]*domain.LoanApplication
	blacklist    []domain.BlacklistEntry
	nextEntryID  int64
}

func NewStore() *Store {
	return &Store{
		customers:    make(map[uuid.UUID]domain.Customer),
		applications: make(map[uuid.UUID]*domain.LoanApplication),
	}
}

type snapshot struct {
	customers    map[uuid.UUID]domain.Customer
	applications map[uuid.UUID]*domain.LoanApplication
	blacklist    []domain.BlacklistEntry
	nextEntryID  int64
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		customers:    make(map[uuid.UUID]domain.Customer, len(s.customers)),
		applications: make(map[uuid.UUID]*domain.LoanApplication, len(s.applications)),
		blacklist:    append([]domain.BlacklistEntry(nil), s.blacklist...),
		nextEntryID:  s.nextEntryID,
	}
	for id, c := range s.customers {
		snap.customers[id] = c
	}
	for id, app := range s.applications {
		snap.applications[id] = app.Clone()
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customers = snap.customers
	s.applications = snap.applications
	s.blacklist = snap.blacklist
	s.nextEntryID = snap.nextEntryID
}

// WithTx implements repository.Transactor
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Applications returns the store as an ApplicationRepository
func (s *Store) Applications() repository.ApplicationRepository { return applicationRepo{s} }

// Customers returns the store as a CustomerRepository
func (s *Store) Customers() repository.CustomerRepository { return customerRepo{s} }

// Blacklist returns the store as a BlacklistRepository
func (s *Store) Blacklist() repository.BlacklistRepository { return blacklistRepo{s} }

type applicationRepo struct{ s *Store }

func (r applicationRepo) Create(ctx context.Context, app *domain.LoanApplication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := app.Clone()
	stored.Customer = nil
	r.s.applications[app.ID] = stored
	return nil
}

func (r applicationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	app, ok := r.s.applications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return app.Clone(), nil
}

// GetByIDForUpdate relies on WithTx for serialisation
func (r applicationRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	return r.GetByID(ctx, id)
}

func (r applicationRepo) Update(ctx context.Context, app *domain.LoanApplication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.applications[app.ID]; !ok {
		return repository.ErrNotFound
	}
	app.UpdatedAt = time.Now().UTC()
	stored := app.Clone()
	stored.Customer = nil
	r.s.applications[app.ID] = stored
	return nil
}

func (r applicationRepo) ListByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.LoanApplication, error) {
	return r.filter(func(app *domain.LoanApplication) bool {
		if len(statuses) == 0 {
			return true
		}
		for _, s := range statuses {
			if app.Status == s {
				return true
			}
		}
		return false
	}, false), nil
}

func (r applicationRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.LoanApplication, error) {
	return r.filter(func(app *domain.LoanApplication) bool {
		return app.CustomerID == customerID
	}, true), nil
}

func (r applicationRepo) filter(keep func(*domain.LoanApplication) bool, newestFirst bool) []*domain.LoanApplication {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domain.LoanApplication, 0)
	for _, app := range r.s.applications {
		if keep(app) {
			out = append(out, app.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := submittedAt(out[i]), submittedAt(out[j])
		if a.Equal(b) {
			return out[i].ID.String() < out[j].ID.String()
		}
		if newestFirst {
			return a.After(b)
		}
		return a.Before(b)
	})
	return out
}

func submittedAt(app *domain.LoanApplication) time.Time {
	if app.SubmittedAt == nil {
		return time.Time{}
	}
	return *app.SubmittedAt
}

func (r applicationRepo) CountByStatus(ctx context.Context) (map[domain.LoanStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[domain.LoanStatus]int, len(domain.AllStatuses))
	for _, s := range domain.AllStatuses {
		counts[s] = 0
	}
	for _, app := range r.s.applications {
		counts[app.Status]++
	}
	return counts, nil
}

type customerRepo struct{ s *Store }

func (r customerRepo) Create(ctx context.Context, customer *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.customers[customer.ID] = *customer
	return nil
}

func (r customerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r customerRepo) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return r.first(func(c domain.Customer) bool { return strings.EqualFold(c.Email, email) })
}

func (r customerRepo) GetByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	return r.first(func(c domain.Customer) bool { return c.Phone == phone })
}

// first returns the oldest matching customer
func (r customerRepo) first(match func(domain.Customer) bool) (*domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var found *domain.Customer
	for _, c := range r.s.customers {
		if !match(c) {
			continue
		}
		if found == nil || c.CreatedAt.Before(found.CreatedAt) {
			c := c
			found = &c
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (r customerRepo) Update(ctx context.Context, customer *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.customers[customer.ID]; !ok {
		return repository.ErrNotFound
	}
	customer.UpdatedAt = time.Now().UTC()
	r.s.customers[customer.ID] = *customer
	return nil
}

type blacklistRepo struct{ s *Store }

func (r blacklistRepo) FindActive(ctx context.Context, entryType domain.BlacklistType, value string) (*domain.BlacklistEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	key := domain.NormalizeBlacklistValue(value)
	for _, e := range r.s.blacklist {
		if e.Active && e.Type == entryType && domain.NormalizeBlacklistValue(e.Value) == key {
			e := e
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r blacklistRepo) Create(ctx context.Context, entry *domain.BlacklistEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextEntryID++
	entry.ID = r.s.nextEntryID
	r.s.blacklist = append(r.s.blacklist, *entry)
	return nil
}
