package service

import (
	"context"
	"fmt"

	"github.com/IlyushaZ/rental-store/pkg/database"
	"github.com/IlyushaZ/rental-store/pkg/model"
)

const (
	DefaultPageNum  = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Item interface {
	Get(ctx context.Context, id int64) (model.Item, error)
	ListPage(ctx context.Context, pageNum, pageSize int) ([]model.Item, int, error)
}

type ItemGeneric struct {
	ItemRepository database.ItemRepository
}

func (ig *ItemGeneric) Get(ctx context.Context, id int64) (model.Item, error) {
	item, err := ig.ItemRepository.Get(ctx, id)
	if err != nil {
		return model.Item{}, fmt.Errorf("can't get item: %w", err)
	}
	return item, nil
}

func (ig *ItemGeneric) ListPage(ctx context.Context, pageNum, pageSize int) ([]model.Item, int, error) {
	if pageNum < 1 {
		return nil, 0, model.Validationf("page number must be positive, got %d", pageNum)
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, 0, model.Validationf("page size must be between 1 and %d, got %d", MaxPageSize, pageSize)
	}

	return ig.ItemRepository.GetPage(ctx, pageNum, pageSize)
}
