package replay

import (
	"context"

	"cpamm/internal/model"
	"cpamm/internal/storage/postgres"
)

// DefaultStateName names the state row a replay writes when none is given.
const DefaultStateName = "replay"

// DBStateStore stores state in the amm_state tables.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (model.Snapshot, bool, error) {
	if s == nil || s.Store == nil {
		return model.Snapshot{}, false, nil
	}
	return s.Store.LoadSnapshot(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, snap model.Snapshot) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveSnapshot(ctx, s.Name, snap)
}
