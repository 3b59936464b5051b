package tablestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidEntity indicates a stored entity could not be decoded.
	ErrInvalidEntity = errors.New("invalid entity")
)

// Store persists JSON entities addressed by (table, partition key, row key)
// on a Redis backend. Row keys within a partition are kept in a sorted-set
// index so partitions can be paged through in stable lexicographic order.
type Store struct {
	redis *redis.Client
}

// Row is one entity of a partition page.
type Row struct {
	RowKey string
	Data   []byte
}

// NewStore creates a table store on the given Redis backend.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{
		redis: redisClient,
	}
}

// entityKey builds the Redis key holding one entity.
func entityKey(table, partition, row string) string {
	return fmt.Sprintf("ts:%s:%s:%s", table, partition, row)
}

// indexKey builds the Redis key of a partition's row-key index.
func indexKey(table, partition string) string {
	return fmt.Sprintf("ts:%s:%s:idx", table, partition)
}

// Put stores an entity and registers its row key in the partition index.
// An existing entity under the same keys is overwritten.
func (s *Store) Put(ctx context.Context, table, partition, row string, entity any) error {
	data, err := json.Marshal(entity)
	if err != nil {
		opErrors.WithLabelValues("put", table).Inc()
		return fmt.Errorf("marshal entity: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, entityKey(table, partition, row), data, 0)
	pipe.ZAdd(ctx, indexKey(table, partition), redis.Z{Score: 0, Member: row})
	if _, err := pipe.Exec(ctx); err != nil {
		opErrors.WithLabelValues("put", table).Inc()
		return fmt.Errorf("redis put: %w", err)
	}

	ops.WithLabelValues("put", table).Inc()
	return nil
}

// Get reads an entity into dest.
// Returns ErrNotFound if no entity exists under the given keys.
func (s *Store) Get(ctx context.Context, table, partition, row string, dest any) error {
	data, err := s.redis.Get(ctx, entityKey(table, partition, row)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		opErrors.WithLabelValues("get", table).Inc()
		return fmt.Errorf("redis get: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		opErrors.WithLabelValues("get", table).Inc()
		return fmt.Errorf("%w: %v", ErrInvalidEntity, err)
	}

	ops.WithLabelValues("get", table).Inc()
	return nil
}

// Delete removes an entity and its index membership.
// Deleting a missing entity is not an error.
func (s *Store) Delete(ctx context.Context, table, partition, row string) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, entityKey(table, partition, row))
	pipe.ZRem(ctx, indexKey(table, partition), row)
	if _, err := pipe.Exec(ctx); err != nil {
		opErrors.WithLabelValues("delete", table).Inc()
		return fmt.Errorf("redis delete: %w", err)
	}

	ops.WithLabelValues("delete", table).Inc()
	return nil
}

// RowKeys returns up to count row keys of a partition starting at offset,
// in stable lexicographic order. An offset past the end yields an empty
// slice and no error.
func (s *Store) RowKeys(ctx context.Context, table, partition string, offset, count int64) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}

	keys, err := s.redis.ZRange(ctx, indexKey(table, partition), offset, offset+count-1).Result()
	if err != nil {
		opErrors.WithLabelValues("row_keys", table).Inc()
		return nil, fmt.Errorf("redis zrange: %w", err)
	}

	ops.WithLabelValues("row_keys", table).Inc()
	return keys, nil
}

// Page returns up to count entities of a partition starting at offset.
// Row keys whose entity has gone missing since indexing are skipped.
func (s *Store) Page(ctx context.Context, table, partition string, offset, count int64) ([]Row, error) {
	rowKeys, err := s.RowKeys(ctx, table, partition, offset, count)
	if err != nil {
		return nil, err
	}
	if len(rowKeys) == 0 {
		return nil, nil
	}

	entityKeys := make([]string, len(rowKeys))
	for i, row := range rowKeys {
		entityKeys[i] = entityKey(table, partition, row)
	}

	values, err := s.redis.MGet(ctx, entityKeys...).Result()
	if err != nil {
		opErrors.WithLabelValues("page", table).Inc()
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	rows := make([]Row, 0, len(rowKeys))
	for i, value := range values {
		str, ok := value.(string)
		if !ok {
			continue
		}
		rows = append(rows, Row{RowKey: rowKeys[i], Data: []byte(str)})
	}

	ops.WithLabelValues("page", table).Inc()
	return rows, nil
}

// Count returns the number of row keys in a partition.
func (s *Store) Count(ctx context.Context, table, partition string) (int64, error) {
	n, err := s.redis.ZCard(ctx, indexKey(table, partition)).Result()
	if err != nil {
		opErrors.WithLabelValues("count", table).Inc()
		return 0, fmt.Errorf("redis zcard: %w", err)
	}

	ops.WithLabelValues("count", table).Inc()
	return n, nil
}

// Ping checks backend reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
