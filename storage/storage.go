// Package storage keeps the outcome of every scenario run.
package storage

import (
	"context"

	"github.com/and161185/bodyleak/model"
)

//go:generate mockgen -source=storage.go -destination=mocks/mock_storage.go -package=mocks

type Storage interface {
	Save(ctx context.Context, r *model.ScenarioResult) error
	GetAll(ctx context.Context) ([]*model.ScenarioResult, error)
}
