package pipeline

import (
	"context"

	"github.com/Sternrassler/nft-catalog-etl/pkg/store"
)

// StoreSchema creates the collections table in a store database.
type StoreSchema struct {
	DB *store.Database
}

// EnsureTable creates the collections table if needed.
func (s StoreSchema) EnsureTable(ctx context.Context) (Table, error) {
	table, err := s.DB.EnsureSchema(ctx, store.CollectionsTable, store.CollectionColumns())
	if err != nil {
		return nil, err
	}
	return table, nil
}
