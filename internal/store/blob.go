package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

const blobsTable = "blobs"

type blobRepo struct {
	db *sql.DB
}

func (r *blobRepo) Load(ctx context.Context, name string) ([]byte, error) {
	query, args := builder.Select("data").
		From(builder.Table(blobsTable)).
		Where(entsql.EQ("name", name)).
		Query()

	var data []byte
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load blob %q: %w", name, err)
	}
	return data, nil
}

func (r *blobRepo) Save(ctx context.Context, name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	query, args := builder.Insert(blobsTable).
		Columns("name", "data", "updated_at").
		Values(name, data, time.Now().UnixMilli()).
		OnConflict(
			entsql.ConflictColumns("name"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save blob %q: %w", name, err)
	}
	return nil
}

// BlobStorage adapts a BlobRepo to the synchronous key-value port the
// conversation manager persists through.
type BlobStorage struct {
	Repo    BlobRepo
	Timeout time.Duration
}

// NewBlobStorage returns a BlobStorage with a five second per-call timeout.
func NewBlobStorage(repo BlobRepo) *BlobStorage {
	return &BlobStorage{Repo: repo, Timeout: 5 * time.Second}
}

// Load implements conversation.Storage.
func (s *BlobStorage) Load(key string) ([]byte, error) {
	ctx, cancel := s.context()
	defer cancel()
	return s.Repo.Load(ctx, key)
}

// Save implements conversation.Storage.
func (s *BlobStorage) Save(key string, data []byte) error {
	ctx, cancel := s.context()
	defer cancel()
	return s.Repo.Save(ctx, key, data)
}

func (s *BlobStorage) context() (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.Timeout)
}
