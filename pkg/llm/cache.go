package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/xhad/hybridrag/internal/types"
	"go.etcd.io/bbolt"
)

var bucketEmbeddings = []byte("embeddings")

// CachedEmbedder memoizes embeddings in a bbolt file keyed by model and
// text, so rebuilding an unchanged corpus makes no external calls.
type CachedEmbedder struct {
	next   types.Embedder
	model  string
	db     *bbolt.DB
	logger *log.Logger
}

var _ types.Embedder = (*CachedEmbedder)(nil)

func NewCachedEmbedder(next types.Embedder, model, path string, logger *log.Logger) (*CachedEmbedder, error) {
	if logger == nil {
		logger = log.Default()
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEmbeddings)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &CachedEmbedder{next: next, model: model, db: db, logger: logger}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	var cached []float32
	err := c.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketEmbeddings).Get(key); data != nil {
			cached = decodeVector(data)
		}
		return nil
	})
	if err == nil && cached != nil {
		return cached, nil
	}

	vector, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// a failed cache write only costs a repeat call later
	err = c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Put(key, encodeVector(vector))
	})
	if err != nil {
		c.logger.Printf("embedding cache: write failed: %v", err)
	}
	return vector, nil
}

func (c *CachedEmbedder) Close() error {
	return c.db.Close()
}

func (c *CachedEmbedder) key(text string) []byte {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return sum[:]
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}
