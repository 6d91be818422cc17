// Package memory keeps the legacy documents in process memory. It backs the
// store.driver=memory mode used for local runs and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/repository"
)

// DB holds every collection behind a single lock.
type DB struct {
	mu           sync.RWMutex
	certificates map[string]model.Certificate
	users        map[string]model.User
	testigos     map[string]model.Testigo
	entradas     map[string]model.Entrada
	messages     map[string]model.ScheduledMessage
	now          func() time.Time
}

func NewDB() *DB {
	return &DB{
		certificates: make(map[string]model.Certificate),
		users:        make(map[string]model.User),
		testigos:     make(map[string]model.Testigo),
		entradas:     make(map[string]model.Entrada),
		messages:     make(map[string]model.ScheduledMessage),
		now:          time.Now,
	}
}

// Store exposes the DB through the repository interfaces.
func (db *DB) Store() repository.Store {
	return repository.Store{
		Certificates: &certificateRepository{db},
		Users:        &userRepository{db},
		Testigos:     &testigoRepository{db},
		Entradas:     &entradaRepository{db},
		Messages:     &messageRepository{db},
	}
}

func (db *DB) PutCertificate(c model.Certificate) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.certificates[c.ID] = c
}

func (db *DB) PutUser(u model.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users[u.ID] = u
}

func (db *DB) PutTestigo(t model.Testigo) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.testigos[t.ID] = t
}

func (db *DB) PutEntrada(e model.Entrada) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.entradas[e.ID] = e
}

func (db *DB) PutMessage(m model.ScheduledMessage) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.messages[m.ID] = m
}

// Certificate returns a copy of the stored certificate.
func (db *DB) Certificate(id string) (model.Certificate, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.certificates[id]
	return c, ok
}

func (db *DB) User(id string) (model.User, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	u, ok := db.users[id]
	return u, ok
}

func (db *DB) Entrada(id string) (model.Entrada, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.entradas[id]
	return e, ok
}

func (db *DB) Message(id string) (model.ScheduledMessage, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.messages[id]
	return m, ok
}

type certificateRepository struct{ db *DB }

func (r *certificateRepository) Get(_ context.Context, id string) (*model.Certificate, error) {
	c, ok := r.db.Certificate(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *certificateRepository) ListByStatus(_ context.Context, status model.CertificateStatus) ([]*model.Certificate, error) {
	return r.filter(func(c model.Certificate) bool { return c.Status == status }), nil
}

func (r *certificateRepository) ListAwaitingNotification(_ context.Context) ([]*model.Certificate, error) {
	return r.filter(func(c model.Certificate) bool {
		return c.Status == model.CertificateStatusApproved && !c.TestigoNotified
	}), nil
}

func (r *certificateRepository) filter(keep func(model.Certificate) bool) []*model.Certificate {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*model.Certificate
	for _, c := range r.db.certificates {
		if keep(c) {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *certificateRepository) TransitionStatus(_ context.Context, id string, from, to model.CertificateStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.certificates[id]
	if !ok {
		return repository.ErrNotFound
	}
	if c.Status != from {
		return repository.ErrStatusConflict
	}
	c.Status = to
	c.UpdatedAt = r.db.now()
	r.db.certificates[id] = c
	return nil
}

func (r *certificateRepository) ClaimTestigoNotification(_ context.Context, id string, now, leaseUntil time.Time) error {
	return r.update(id, func(c *model.Certificate) error {
		if c.TestigoNotified || (c.NotifyLeaseUntil != nil && c.NotifyLeaseUntil.After(now)) {
			return repository.ErrStatusConflict
		}
		c.NotifyLeaseUntil = &leaseUntil
		return nil
	})
}

func (r *certificateRepository) ReleaseTestigoNotification(_ context.Context, id string) error {
	return r.update(id, func(c *model.Certificate) error {
		c.NotifyLeaseUntil = nil
		return nil
	})
}

func (r *certificateRepository) MarkTestigoNotified(_ context.Context, id, testigoID string) error {
	return r.update(id, func(c *model.Certificate) error {
		c.TestigoNotified = true
		c.TestigoID = testigoID
		c.NotifyLeaseUntil = nil
		c.UpdatedAt = r.db.now()
		return nil
	})
}

func (r *certificateRepository) update(id string, fn func(*model.Certificate) error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.certificates[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := fn(&c); err != nil {
		return err
	}
	r.db.certificates[id] = c
	return nil
}

type userRepository struct{ db *DB }

func (r *userRepository) Get(_ context.Context, id string) (*model.User, error) {
	u, ok := r.db.User(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepository) MarkDeceased(_ context.Context, id string) error {
	return r.update(id, func(u *model.User) { u.IsDeceased = true })
}

func (r *userRepository) SetPremium(_ context.Context, id string, premium bool) error {
	return r.update(id, func(u *model.User) { u.IsPremium = premium })
}

func (r *userRepository) update(id string, fn func(*model.User)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	r.db.users[id] = u
	return nil
}

type testigoRepository struct{ db *DB }

func (r *testigoRepository) ListByUser(_ context.Context, userID string) ([]*model.Testigo, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*model.Testigo
	for _, t := range r.db.testigos {
		if t.UserID == userID {
			t := t
			out = append(out, &t)
		}
	}
	return out, nil
}

type entradaRepository struct{ db *DB }

func (r *entradaRepository) ListByUser(_ context.Context, userID string) ([]*model.Entrada, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*model.Entrada
	for _, e := range r.db.entradas {
		if e.UserID == userID {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *entradaRepository) SetPublic(_ context.Context, id string, public bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.entradas[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.IsPublic = public
	r.db.entradas[id] = e
	return nil
}

type messageRepository struct{ db *DB }

func (r *messageRepository) ListDue(_ context.Context, now time.Time) ([]*model.ScheduledMessage, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*model.ScheduledMessage
	for _, m := range r.db.messages {
		if m.IsDue(now) {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *messageRepository) MarkSent(_ context.Context, id string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.messages[id]
	if !ok {
		return repository.ErrNotFound
	}
	m.Enviado = true
	m.EnviadoAt = &at
	r.db.messages[id] = m
	return nil
}
