package importer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bingefriend/episode-importer/pkg/tablestore"
)

// Config holds orchestration settings shared by the importer components.
type Config struct {
	// BatchSize is the catalog page size used when a continuation message
	// does not carry one.
	BatchSize int

	// ScopeKey is the tracking scope lifecycle records are filed under.
	ScopeKey string

	// CatalogTable and CatalogPartition locate the show id catalog in the
	// table store.
	CatalogTable     string
	CatalogPartition string
}

// DefaultConfig returns safe orchestration defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:        1000,
		ScopeKey:         "show_episodes_import",
		CatalogTable:     "showids",
		CatalogPartition: "show",
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.ScopeKey == "" {
		c.ScopeKey = def.ScopeKey
	}
	if c.CatalogTable == "" {
		c.CatalogTable = def.CatalogTable
	}
	if c.CatalogPartition == "" {
		c.CatalogPartition = def.CatalogPartition
	}
	return c
}

// Enumerator pages through the show id catalog in bounded batches, never
// holding more than one page in memory.
type Enumerator struct {
	store  *tablestore.Store
	config Config
	logger zerolog.Logger
}

// NewEnumerator creates a catalog enumerator.
func NewEnumerator(store *tablestore.Store, config Config) (*Enumerator, error) {
	if store == nil {
		return nil, fmt.Errorf("table store is required")
	}

	return &Enumerator{
		store:  store,
		config: config.withDefaults(),
		logger: log.With().Str("component", "enumerator").Logger(),
	}, nil
}

// NextBatch returns the show ids of one catalog page. Row keys that do not
// parse as a positive show id are skipped with a warning and do not appear
// in the result. hasMore is true iff the raw page was exactly full; a
// catalog divisible by the batch size therefore costs one final empty
// continuation.
func (e *Enumerator) NextBatch(ctx context.Context, importID string, batchNumber, batchSize int) ([]int, bool, error) {
	offset := int64(batchNumber) * int64(batchSize)

	rowKeys, err := e.store.RowKeys(ctx, e.config.CatalogTable, e.config.CatalogPartition, offset, int64(batchSize))
	if err != nil {
		return nil, false, fmt.Errorf("page show id catalog: %w", err)
	}

	showIDs := make([]int, 0, len(rowKeys))
	for _, key := range rowKeys {
		id, err := strconv.Atoi(key)
		if err != nil || id <= 0 {
			e.logger.Warn().
				Str("row_key", key).
				Str("import_id", importID).
				Msg("Skipping catalog entry with unusable show id")
			continue
		}
		showIDs = append(showIDs, id)
	}

	e.logger.Debug().
		Str("import_id", importID).
		Int("batch_number", batchNumber).
		Int("show_count", len(showIDs)).
		Msg("Catalog batch enumerated")

	return showIDs, len(rowKeys) == batchSize, nil
}

// Total returns the catalog size.
func (e *Enumerator) Total(ctx context.Context) (int64, error) {
	return e.store.Count(ctx, e.config.CatalogTable, e.config.CatalogPartition)
}
