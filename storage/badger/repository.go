package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/query"
	"github.com/poiesic/screener/storage"
)

// Repository implements storage.Repository for BadgerDB.
type Repository struct {
	backend     *Backend
	ownsBackend bool
	logger      *slog.Logger
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository opens (or creates) an index at path.
func NewRepository(path string, opts ...BackendOption) (storage.Repository, error) {
	backend, err := OpenBackend(path, false, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
	}
	repo := newRepository(backend)
	repo.ownsBackend = true
	return repo, nil
}

// NewMemoryRepository creates an index held entirely in memory.
func NewMemoryRepository(opts ...BackendOption) (storage.Repository, error) {
	backend, err := OpenBackend("", true, opts...)
	if err != nil {
		return nil, err
	}
	repo := newRepository(backend)
	repo.ownsBackend = true
	return repo, nil
}

// NewRepositoryWithBackend creates a repository over an open backend.
// Closing the repository leaves the backend open.
func NewRepositoryWithBackend(backend *Backend) (*Repository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return newRepository(backend), nil
}

func newRepository(backend *Backend) *Repository {
	return &Repository{backend: backend, logger: backend.logger}
}

// Close releases the backend if the repository opened it.
func (r *Repository) Close() error {
	if r.ownsBackend && !r.backend.IsClosed() {
		return r.backend.Close()
	}
	return nil
}

// Ping reports whether the index can serve queries.
func (r *Repository) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.backend.IsClosed() {
		return unavailable(storage.ErrStorageClosed)
	}
	return nil
}

// PutDocuments stores documents, replacing any earlier version of the same
// entity along with its postings. Oversized batches are split across
// transactions.
func (r *Repository) PutDocuments(ctx context.Context, docs ...*query.Document) error {
	for _, doc := range docs {
		if doc == nil {
			return fmt.Errorf("%w: document is nil", storage.ErrInvalidDocument)
		}
		if err := core.ValidateEntity(doc.Entity); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrInvalidDocument, err)
		}
	}
	if r.backend.IsClosed() {
		return unavailable(storage.ErrStorageClosed)
	}

	txn := r.backend.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := writeDocument(txn, doc)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return err
			}
			txn = r.backend.db.NewTransaction(true)
			err = writeDocument(txn, doc)
		}
		if err != nil {
			return err
		}
	}
	return txn.Commit()
}

func writeDocument(tx *badger.Txn, doc *query.Document) error {
	id := doc.Entity.ID
	key := makeDocumentKey(id)

	old, err := readDocument(tx, key)
	if err != nil {
		return err
	}
	if old != nil {
		for _, term := range old.Terms {
			if err := tx.Delete(makePostingKey(term, id)); err != nil {
				return err
			}
		}
		for _, ref := range old.Entity.Referents {
			if err := tx.Delete(makeReferentKey(ref)); err != nil {
				return err
			}
		}
	}

	value, err := storage.MarshalDocument(doc)
	if err != nil {
		return err
	}
	if err := tx.Set(key, value); err != nil {
		return err
	}
	for _, term := range doc.Terms {
		if err := tx.Set(makePostingKey(term, id), nil); err != nil {
			return err
		}
	}
	for _, ref := range doc.Entity.Referents {
		if ref == id {
			continue
		}
		if err := tx.Set(makeReferentKey(ref), []byte(id)); err != nil {
			return err
		}
	}
	return nil
}

// GetEntity retrieves an entity by its canonical ID.
func (r *Repository) GetEntity(ctx context.Context, id string) (*core.Entity, error) {
	var result *core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, makeDocumentKey(id))
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%w: entity %q", storage.ErrNotFound, id)
		}
		result = doc.Entity
		return nil
	}, false)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, unavailable(err)
	}
	return result, err
}

// ResolveReferent returns the canonical ID a referent was merged into.
func (r *Repository) ResolveReferent(ctx context.Context, id string) (string, error) {
	var canonical string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeReferentKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("%w: referent %q", storage.ErrNotFound, id)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			canonical = string(val)
			return nil
		})
	}, false)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", unavailable(err)
	}
	return canonical, err
}

// CountEntities returns the number of stored entities.
func (r *Repository) CountEntities(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanDocumentIDs(ctx, tx, func(string) { count++ })
	}, false)
	if err != nil {
		return 0, unavailable(err)
	}
	return count, nil
}

// Clear removes all data from the index.
func (r *Repository) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.backend.DropAll(); err != nil {
		return unavailable(err)
	}
	r.logger.Info("index cleared")
	return nil
}

// SaveStatus persists the index status.
func (r *Repository) SaveStatus(ctx context.Context, status *core.IndexStatus) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		status.UpdatedAt = time.Now().UTC()
		value, err := storage.MarshalStatus(status)
		if err != nil {
			return err
		}
		if err := tx.Set([]byte(statusKey), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return unavailable(err)
}

// LoadStatus returns the stored index status.
// Returns nil, nil if no status exists.
func (r *Repository) LoadStatus(ctx context.Context) (*core.IndexStatus, error) {
	var status *core.IndexStatus
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(statusKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			status, unmarshalErr = storage.UnmarshalStatus(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, unavailable(err)
	}
	return status, nil
}

// readDocument loads a document, returning nil if the key does not exist.
func readDocument(tx *badger.Txn, key []byte) (*query.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *query.Document
	err = item.Value(func(val []byte) error {
		var err error
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}

// scanDocumentIDs calls fn with the ID of every stored document.
func scanDocumentIDs(ctx context.Context, tx *badger.Txn, fn func(id string)) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(documentPrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	n := 0
	for iter.Rewind(); iter.Valid(); iter.Next() {
		if n++; n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fn(documentIDFromKey(iter.Item().Key()))
	}
	return nil
}

// unavailable marks storage failures as core.ErrIndexUnavailable.
// Context errors and already classified errors pass through.
func unavailable(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, core.ErrIndexUnavailable), errors.Is(err, core.ErrQueryRejected):
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
}
