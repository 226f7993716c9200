package store

import (
	"context"

	"locgeo/pkg/model"
)

// Lookuper finds a record by loc_id. A nil record is a definite miss.
type Lookuper interface {
	Lookup(id string) *model.GeometryRecord
}

// ScopeSource returns the loaded store for a scope. A nil store with a nil
// error means the scope has no file.
type ScopeSource interface {
	Get(scope ScopeID) (*Store, error)
}

// RecordStore persists the records of one scope.
type RecordStore interface {
	LoadRecords(ctx context.Context) ([]*model.GeometryRecord, error)
	SaveRecords(ctx context.Context, recs []*model.GeometryRecord) error
	AppendRecords(ctx context.Context, recs []*model.GeometryRecord) error
}

// StateStore handles persistent per-scope state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
