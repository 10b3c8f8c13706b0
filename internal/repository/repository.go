package repository

import (
	"context"

	"github.com/sakif/runbox/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type RunRepository interface {
	Create(ctx context.Context, run *model.Run) error
	GetByID(ctx context.Context, id string) (*model.Run, error)
	List(ctx context.Context, opts ListOptions) ([]model.Run, error)
	Delete(ctx context.Context, id string) error
}
