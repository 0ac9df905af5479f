package badger

import (
	"context"

	"github.com/poiesic/screener/query"
	"github.com/poiesic/screener/storage"
)

// NewMemoryIndex creates an in-memory repository preloaded with documents,
// for tests. Caller must close the repository when done.
func NewMemoryIndex(docs ...*query.Document) (storage.Repository, error) {
	repo, err := NewMemoryRepository()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return repo, nil
	}
	if err := repo.PutDocuments(context.Background(), docs...); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}
