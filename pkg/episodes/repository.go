package episodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bingefriend/episode-importer/pkg/tvmaze"
)

// updateColumns are the columns refreshed when an upsert hits an existing
// row. Everything except the primary key and created_at.
var updateColumns = []string{
	"show_id", "url", "name", "season", "number", "type",
	"airdate", "airtime", "airstamp", "runtime",
	"rating", "image", "summary", "links", "updated_at",
}

// Repository persists and reads episodes.
type Repository struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewRepository creates an episode repository on the given database handle.
func NewRepository(db *gorm.DB) *Repository {
	if db == nil {
		panic("database handle cannot be nil")
	}
	return &Repository{
		db:     db,
		logger: log.With().Str("component", "episodes").Logger(),
	}
}

// Migrate creates or updates the episodes table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Episode{}); err != nil {
		return fmt.Errorf("migrate episodes table: %w", err)
	}
	return nil
}

// Upsert inserts or updates one episode keyed by its upstream id, so
// applying the same record twice leaves the row unchanged. A record without
// an id is logged and dropped without error; persistence errors are
// returned so the caller's retry policy sees them.
func (r *Repository) Upsert(ctx context.Context, record *tvmaze.Episode, showID int) error {
	if record == nil || record.ID == 0 {
		upserts.WithLabelValues("skipped").Inc()
		r.logger.Error().
			Int("show_id", showID).
			Msg("Episode has no id, skipping upsert")
		return nil
	}

	row := newRow(record, showID)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(&row).Error
	if err != nil {
		upserts.WithLabelValues("error").Inc()
		return fmt.Errorf("upsert episode %d: %w", record.ID, err)
	}

	upserts.WithLabelValues("ok").Inc()
	r.logger.Debug().
		Int("episode_id", record.ID).
		Int("show_id", showID).
		Msg("Episode upserted")
	return nil
}

// GetByID returns one episode, or nil when none exists.
func (r *Repository) GetByID(ctx context.Context, id int) (*Episode, error) {
	var row Episode
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		queryErrors.WithLabelValues("get_by_id").Inc()
		return nil, fmt.Errorf("get episode %d: %w", id, err)
	}
	return &row, nil
}

// ListByShow returns all episodes of a show ordered by season and number.
func (r *Repository) ListByShow(ctx context.Context, showID int) ([]Episode, error) {
	var rows []Episode
	err := r.db.WithContext(ctx).
		Where("show_id = ?", showID).
		Order("season, number").
		Find(&rows).Error
	if err != nil {
		queryErrors.WithLabelValues("list_by_show").Inc()
		return nil, fmt.Errorf("list episodes for show %d: %w", showID, err)
	}
	return rows, nil
}

// ListBySeason returns one season of a show ordered by number.
func (r *Repository) ListBySeason(ctx context.Context, showID, season int) ([]Episode, error) {
	var rows []Episode
	err := r.db.WithContext(ctx).
		Where("show_id = ? AND season = ?", showID, season).
		Order("number").
		Find(&rows).Error
	if err != nil {
		queryErrors.WithLabelValues("list_by_season").Inc()
		return nil, fmt.Errorf("list episodes for show %d season %d: %w", showID, season, err)
	}
	return rows, nil
}

// Count returns the number of stored episodes.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Episode{}).Count(&n).Error; err != nil {
		queryErrors.WithLabelValues("count").Inc()
		return 0, fmt.Errorf("count episodes: %w", err)
	}
	return n, nil
}

// LatestUpdate returns the most recent row update time, or nil when the
// table is empty.
func (r *Repository) LatestUpdate(ctx context.Context) (*time.Time, error) {
	var latest sql.NullTime
	row := r.db.WithContext(ctx).Model(&Episode{}).Select("MAX(updated_at)").Row()
	if err := row.Scan(&latest); err != nil {
		queryErrors.WithLabelValues("latest_update").Inc()
		return nil, fmt.Errorf("latest episode update: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	t := latest.Time
	return &t, nil
}
