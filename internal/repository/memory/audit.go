package memory

import (
	"context"

	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"gorm.io/gorm"
)

type auditStore struct{ s *Store }

var _ repository.AuditRepository = (*auditStore)(nil)

// Append holds the data lock for the whole build, which plays the role of the
// FOR UPDATE lock on the chain tail row.
func (r *auditStore) Append(_ context.Context, _ *gorm.DB, build repository.ChainBuilder) (*model.CashAuditLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, err := build(r.s.t.tail)
	if err != nil {
		return nil, err
	}
	for _, other := range r.s.t.audit {
		if other.Sequence == e.Sequence || other.ID == e.ID {
			return nil, repository.ErrDuplicate
		}
	}
	r.s.t.audit = append(r.s.t.audit, *e)
	ts := e.Timestamp
	r.s.t.tail = model.AuditChainTail{
		ID:            1,
		LastSequence:  e.Sequence,
		LastHash:      e.CurrentHash,
		LastTimestamp: &ts,
	}
	return e, nil
}

func (r *auditStore) List(_ context.Context, f dto.AuditFilter) ([]model.CashAuditLogEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []model.CashAuditLogEntry
	for _, e := range r.s.t.audit {
		if f.From != nil && e.Timestamp.Before(*f.From) {
			continue
		}
		if f.To != nil && !e.Timestamp.Before(*f.To) {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.UserID != nil && e.UserID != *f.UserID {
			continue
		}
		if f.SessionID != nil && (e.SessionID == nil || *e.SessionID != *f.SessionID) {
			continue
		}
		if f.TransactionID != nil && (e.TransactionID == nil || *e.TransactionID != *f.TransactionID) {
			continue
		}
		out = append(out, e)
	}
	// Appends are in sequence order already.
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *auditStore) FindBefore(_ context.Context, seq int64) (*model.CashAuditLogEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for i := len(r.s.t.audit) - 1; i >= 0; i-- {
		if e := r.s.t.audit[i]; e.Sequence < seq {
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *auditStore) Tail(_ context.Context) (*model.AuditChainTail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t := r.s.t.tail
	return &t, nil
}

// MutateAuditEntry rewrites a stored entry in place. The SQL schema rejects
// this with a trigger; the memory store allows it to rehearse tamper detection.
func (s *Store) MutateAuditEntry(seq int64, fn func(e *model.CashAuditLogEntry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.t.audit {
		if s.t.audit[i].Sequence == seq {
			fn(&s.t.audit[i])
			return true
		}
	}
	return false
}
