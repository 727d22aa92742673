package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
)

type userStore struct{ s *Store }

var _ repository.UserRepository = (*userStore)(nil)

func (r *userStore) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	for _, other := range r.s.t.users {
		if other.ID == u.ID || other.Username == u.Username {
			return repository.ErrDuplicate
		}
	}
	stamp(&u.CreatedAt, &u.UpdatedAt)
	r.s.t.users[u.ID] = *u
	return nil
}

func (r *userStore) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.t.users {
		if !u.Active {
			continue
		}
		if u.Username == username || (u.Email != nil && strings.EqualFold(*u.Email, username)) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userStore) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.t.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userStore) ListByRole(_ context.Context, role string) ([]model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.User
	for _, u := range r.s.t.users {
		if u.Role == role && u.Active {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
