// Package repository defines the storage interfaces the rest of the
// application depends on. Concrete implementations live in subpackages.
package repository

import (
	"context"

	"github.com/Ard-Skelling/autogen/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type RunRepository interface {
	Create(ctx context.Context, run *model.Run) error
	GetByID(ctx context.Context, id string) (*model.Run, error)
	List(ctx context.Context, opts ListOptions) ([]model.Run, error)
}
