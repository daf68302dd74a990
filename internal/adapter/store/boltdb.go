package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"docrag/internal/domain"
	"docrag/internal/port"
)

var _ port.DocumentStore = (*BoltStore)(nil)

var (
	bucketChunks = []byte("chunks")
	bucketFiles  = []byte("files")
	bucketMeta   = []byte("meta")
	keyDimension = []byte("dimension")
)

// BoltStore keeps chunks in a single bbolt file. Chunk keys come from the
// bucket sequence, so iteration order is insertion order.
type BoltStore struct {
	db *bbolt.DB
}

// DefaultLockTimeout bounds how long NewBoltStore waits for the file lock
// held by another process.
const DefaultLockTimeout = 5 * time.Second

func NewBoltStore(path string) (*BoltStore, error) {
	return NewBoltStoreWithTimeout(path, DefaultLockTimeout)
}

// NewBoltStoreWithTimeout opens the store at path, giving up after
// lockTimeout when another process holds it. A zero timeout waits forever.
func NewBoltStoreWithTimeout(path string, lockTimeout time.Duration) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: lockTimeout})
	if errors.Is(err, bbolt.ErrTimeout) {
		return nil, &domain.StoreError{Op: "open", Err: fmt.Errorf("store %s is in use by another process: %w", path, err)}
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "open", Err: fmt.Errorf("failed to open bolt db: %w", err)}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketChunks, bucketFiles, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, &domain.StoreError{Op: "open", Err: err}
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

type storedChunk struct {
	Category  string    `json:"category"`
	Year      string    `json:"year"`
	Content   string    `json:"content"`
	FilePath  string    `json:"filepath"`
	Embedding []float32 `json:"v"`
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func (s *BoltStore) Exists(ctx context.Context, filePath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &domain.StoreError{Op: "exists", Err: err}
	}

	var exists bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketFiles).Get([]byte(filePath)) != nil
		return nil
	})
	if err != nil {
		return false, &domain.StoreError{Op: "exists", Err: err}
	}
	return exists, nil
}

func (s *BoltStore) Insert(ctx context.Context, chunk domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return &domain.StoreError{Op: "insert", Err: err}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if dim := meta.Get(keyDimension); dim != nil {
			if int(binary.BigEndian.Uint64(dim)) != len(chunk.Embedding) {
				return domain.ErrDimensionMismatch
			}
		} else if err := meta.Put(keyDimension, seqKey(uint64(len(chunk.Embedding)))); err != nil {
			return err
		}

		chunks := tx.Bucket(bucketChunks)
		seq, err := chunks.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(storedChunk{
			Category:  chunk.Category,
			Year:      chunk.Year,
			Content:   chunk.Content,
			FilePath:  chunk.FilePath,
			Embedding: chunk.Embedding,
		})
		if err != nil {
			return err
		}
		key := seqKey(seq)
		if err := chunks.Put(key, data); err != nil {
			return err
		}

		files := tx.Bucket(bucketFiles)
		var keys []uint64
		if existing := files.Get([]byte(chunk.FilePath)); existing != nil {
			if err := json.Unmarshal(existing, &keys); err != nil {
				return err
			}
		}
		keys = append(keys, seq)
		encoded, err := json.Marshal(keys)
		if err != nil {
			return err
		}
		return files.Put([]byte(chunk.FilePath), encoded)
	})
	if err != nil {
		return &domain.StoreError{Op: "insert", Err: err}
	}
	return nil
}

func (s *BoltStore) ScanAll(ctx context.Context) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.StoreError{Op: "scan", Err: err}
	}

	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			var stored storedChunk
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("chunk %d: %w", binary.BigEndian.Uint64(k), err)
			}
			chunks = append(chunks, domain.Chunk{
				Category:  stored.Category,
				Year:      stored.Year,
				Content:   stored.Content,
				Embedding: stored.Embedding,
				FilePath:  stored.FilePath,
			})
			return nil
		})
	})
	if err != nil {
		return nil, &domain.StoreError{Op: "scan", Err: err}
	}
	return chunks, nil
}

func (s *BoltStore) DeleteByFile(ctx context.Context, filePath string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &domain.StoreError{Op: "delete", Err: err}
	}

	var deleted int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		files := tx.Bucket(bucketFiles)
		existing := files.Get([]byte(filePath))
		if existing == nil {
			return nil
		}
		var keys []uint64
		if err := json.Unmarshal(existing, &keys); err != nil {
			return err
		}

		chunks := tx.Bucket(bucketChunks)
		for _, seq := range keys {
			if err := chunks.Delete(seqKey(seq)); err != nil {
				return err
			}
			deleted++
		}
		if err := files.Delete([]byte(filePath)); err != nil {
			return err
		}

		// an empty store accepts any dimension again
		if isEmpty(chunks) {
			return tx.Bucket(bucketMeta).Delete(keyDimension)
		}
		return nil
	})
	if err != nil {
		return 0, &domain.StoreError{Op: "delete", Err: err}
	}
	return deleted, nil
}

func isEmpty(b *bbolt.Bucket) bool {
	k, _ := b.Cursor().First()
	return k == nil
}

func (s *BoltStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &domain.StoreError{Op: "count", Err: err}
	}

	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketChunks).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, &domain.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
