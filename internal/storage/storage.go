package storage

import (
	"context"

	"cpamm/internal/model"
)

// ResultSink receives the outcome of replayed operations.
type ResultSink interface {
	PutResults(ctx context.Context, results []model.ResultRecord) error
}
