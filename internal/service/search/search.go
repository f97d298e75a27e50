package search

import (
	"context"

	"github.com/Skotchmaster/stone_shop/internal/models"
	"github.com/Skotchmaster/stone_shop/internal/repo"
)

// Searcher finds products whose name contains the query text.
type Searcher interface {
	Search(ctx context.Context, text string) ([]models.Product, error)
}

// Indexer keeps an external index in step with catalog writes.
type Indexer interface {
	IndexProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id uint) error
}

// DBSearcher matches names with SQL LIKE.
type DBSearcher struct {
	Repo *repo.GormRepo
}

func (s *DBSearcher) Search(ctx context.Context, text string) ([]models.Product, error) {
	return s.Repo.SearchByName(ctx, text)
}

type NopIndexer struct{}

func (NopIndexer) IndexProduct(context.Context, *models.Product) error { return nil }
func (NopIndexer) DeleteProduct(context.Context, uint) error            { return nil }
