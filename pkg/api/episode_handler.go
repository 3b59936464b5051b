package api

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bingefriend/episode-importer/pkg/episodes"
)

// cacheControl is sent with cacheable episode responses.
const cacheControl = "public, max-age=3600"

// EpisodeReader is the read surface the episode endpoints query.
// *episodes.Repository satisfies it.
type EpisodeReader interface {
	GetByID(ctx context.Context, id int) (*episodes.Episode, error)
	ListByShow(ctx context.Context, showID int) ([]episodes.Episode, error)
	ListBySeason(ctx context.Context, showID, season int) ([]episodes.Episode, error)
}

// EpisodeHandler serves stored episode data.
type EpisodeHandler struct {
	reader EpisodeReader
	logger zerolog.Logger
}

func NewEpisodeHandler(reader EpisodeReader) *EpisodeHandler {
	return &EpisodeHandler{
		reader: reader,
		logger: log.With().Str("component", "api").Logger(),
	}
}

// GetEpisode returns one episode by ID. The response carries an ETag
// over the serialized record; a matching If-None-Match answers 304
// with no body.
func (h *EpisodeHandler) GetEpisode(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("episode_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid episode ID format"})
	}

	row, err := h.reader.GetByID(c.Request().Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int("episode_id", id).Msg("Episode lookup failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	if row == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Episode not found"})
	}

	body, err := json.Marshal(row)
	if err != nil {
		h.logger.Error().Err(err).Int("episode_id", id).Msg("Episode serialization failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	sum := md5.Sum(body)
	etag := hex.EncodeToString(sum[:])
	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}

	c.Response().Header().Set("ETag", etag)
	c.Response().Header().Set("Cache-Control", cacheControl)
	return c.JSONBlob(http.StatusOK, body)
}

// ListShowEpisodes returns all stored episodes of a show ordered by
// season and number.
func (h *EpisodeHandler) ListShowEpisodes(c echo.Context) error {
	showID, err := strconv.Atoi(c.Param("show_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid show ID format"})
	}

	rows, err := h.reader.ListByShow(c.Request().Context(), showID)
	if err != nil {
		h.logger.Error().Err(err).Int("show_id", showID).Msg("Episode list failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	if rows == nil {
		rows = []episodes.Episode{}
	}
	return c.JSON(http.StatusOK, rows)
}

// ListSeasonEpisodes returns one season of a show. The response carries
// a weak content ETag derived from the show, season and episode count.
func (h *EpisodeHandler) ListSeasonEpisodes(c echo.Context) error {
	showID, err := strconv.Atoi(c.Param("show_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid show ID or season number format"})
	}
	season, err := strconv.Atoi(c.Param("season"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid show ID or season number format"})
	}

	rows, err := h.reader.ListBySeason(c.Request().Context(), showID, season)
	if err != nil {
		h.logger.Error().Err(err).Int("show_id", showID).Int("season", season).Msg("Season list failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	if rows == nil {
		rows = []episodes.Episode{}
	}

	c.Response().Header().Set("ETag", fmt.Sprintf(`"%d-%d-%d"`, showID, season, len(rows)))
	c.Response().Header().Set("Cache-Control", cacheControl)
	return c.JSON(http.StatusOK, rows)
}
