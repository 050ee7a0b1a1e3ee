package round

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	xdr "github.com/nullstyle/go-xdr/xdr3"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var ErrNoBlock = errors.New("no block persisted")

// Store persists the block counter between runs.
type Store interface {
	// Get returns ErrNoBlock if nothing was stored yet.
	Get(ctx context.Context) (uint64, error)
	Set(ctx context.Context, block uint64) error
}

var blockKey = []byte("current_block")

type blockRecord struct {
	Block     uint64
	UpdatedAt int64
}

// LevelDBStore keeps the counter in a leveldb database.
type LevelDBStore struct {
	db *leveldb.DB
}

func NewLevelDBStore(dbPath string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database @ %s: %w", dbPath, err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func (s *LevelDBStore) Get(ctx context.Context) (uint64, error) {
	data, err := s.db.Get(blockKey, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return 0, ErrNoBlock
	case err != nil:
		return 0, fmt.Errorf("get block from DB: %w", err)
	}

	var record blockRecord
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &record); err != nil {
		return 0, fmt.Errorf("failed to deserialize: %w", err)
	}
	return record.Block, nil
}

func (s *LevelDBStore) Set(ctx context.Context, block uint64) error {
	var buf bytes.Buffer
	record := blockRecord{Block: block, UpdatedAt: time.Now().Unix()}
	if _, err := xdr.Marshal(&buf, &record); err != nil {
		return fmt.Errorf("failed serializing block: %w", err)
	}
	if err := s.db.Put(blockKey, buf.Bytes(), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("storing block in DB: %w", err)
	}
	return nil
}
