package memory

import (
	"context"
	"strings"

	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/google/uuid"
)

type vehicleStore struct{ s *Store }

var _ repository.VehicleRepository = (*vehicleStore)(nil)

func (r *vehicleStore) FindByID(_ context.Context, id uuid.UUID) (*model.Vehicle, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.t.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (r *vehicleStore) FindByPlate(_ context.Context, plate string) (*model.Vehicle, error) {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, v := range r.s.t.vehicles {
		if v.Plate == plate {
			return &v, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *vehicleStore) Create(_ context.Context, v *model.Vehicle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.Plate = strings.ToUpper(strings.TrimSpace(v.Plate))
	for _, other := range r.s.t.vehicles {
		if other.ID == v.ID || other.Plate == v.Plate {
			return repository.ErrDuplicate
		}
	}
	stamp(&v.CreatedAt, &v.UpdatedAt)
	r.s.t.vehicles[v.ID] = *v
	return nil
}
