package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bingefriend/episode-importer/pkg/importer"
	"github.com/bingefriend/episode-importer/pkg/monitor"
	"github.com/bingefriend/episode-importer/pkg/tvmaze"
)

// defaultRetryMaxAgeHours bounds a retry sweep when the caller does not
// pass max_age_hours.
const defaultRetryMaxAgeHours = 24

// ImportService is the orchestration surface the import endpoints call.
// *importer.Service satisfies it.
type ImportService interface {
	StartImport(ctx context.Context, batchSize int) (string, error)
	ImportStatus(ctx context.Context, importID string) *monitor.ImportRecord
	GetUpdates(ctx context.Context, period tvmaze.Period) (int, error)
	RetryFailedOperations(ctx context.Context, operationType string, maxAge time.Duration) (importer.RetrySummary, error)
	SystemHealth(ctx context.Context) importer.SystemHealth
}

// ImportHandler serves the import lifecycle endpoints: starting bulk
// imports, polling the updates feed, inspecting import progress,
// replaying failed operations and reporting system health.
type ImportHandler struct {
	service ImportService
	logger  zerolog.Logger
}

func NewImportHandler(service ImportService) *ImportHandler {
	return &ImportHandler{
		service: service,
		logger:  log.With().Str("component", "api").Logger(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type startImportRequest struct {
	BatchSize int `json:"batch_size"`
}

type startImportResponse struct {
	ImportID string `json:"import_id"`
}

type updatesResponse struct {
	Since  string `json:"since"`
	Queued int    `json:"queued"`
}

type healthResponse struct {
	Status    string                `json:"status"`
	Timestamp time.Time             `json:"timestamp"`
	Details   importer.SystemHealth `json:"details"`
}

// StartImport kicks off a full catalog import and answers 202 with the
// new import's ID. The optional body may override the batch size; zero
// or absent falls back to the configured default.
func (h *ImportHandler) StartImport(c echo.Context) error {
	var req startImportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	importID, err := h.service.StartImport(c.Request().Context(), req.BatchSize)
	if err != nil {
		h.logger.Error().Err(err).Msg("Import start failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusAccepted, startImportResponse{ImportID: importID})
}

// ImportStatus returns the tracked progress record of one import.
func (h *ImportHandler) ImportStatus(c echo.Context) error {
	importID := c.Param("import_id")

	record := h.service.ImportStatus(c.Request().Context(), importID)
	if record == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: fmt.Sprintf("Import %s not found", importID)})
	}
	return c.JSON(http.StatusOK, record)
}

// TriggerUpdates polls the upstream updates feed and enqueues a unit of
// work per changed show. The since query parameter picks the window and
// defaults to day.
func (h *ImportHandler) TriggerUpdates(c echo.Context) error {
	raw := c.QueryParam("since")
	if raw == "" {
		raw = string(tvmaze.PeriodDay)
	}
	period, ok := tvmaze.ParsePeriod(raw)
	if !ok {
		h.logger.Warn().Str("since", raw).Msg("Invalid since parameter provided")
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Query parameter 'since' must be 'day', 'week', or 'month'."})
	}

	queued, err := h.service.GetUpdates(c.Request().Context(), period)
	if err != nil {
		h.logger.Error().Err(err).Str("since", raw).Msg("Updates poll failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusAccepted, updatesResponse{Since: string(period), Queued: queued})
}

// RetryOperations sweeps failed operations of one type and replays each.
// operation_type is required; max_age_hours bounds how far back the
// sweep looks and defaults to 24.
func (h *ImportHandler) RetryOperations(c echo.Context) error {
	operationType := c.QueryParam("operation_type")
	if operationType == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "operation_type parameter is required"})
	}

	maxAgeHours := defaultRetryMaxAgeHours
	if raw := c.QueryParam("max_age_hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid 'max_age_hours' parameter. Must be an integer."})
		}
		maxAgeHours = n
	}

	summary, err := h.service.RetryFailedOperations(c.Request().Context(), operationType, time.Duration(maxAgeHours)*time.Hour)
	if err != nil {
		h.logger.Error().Err(err).Str("operation_type", operationType).Msg("Retry sweep failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, summary)
}

// Health reports overall system health: 200 when healthy, 503 when the
// system is degraded or unhealthy.
func (h *ImportHandler) Health(c echo.Context) error {
	health := h.service.SystemHealth(c.Request().Context())

	status := http.StatusOK
	state := "healthy"
	if !health.Healthy() {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	return c.JSON(status, healthResponse{
		Status:    state,
		Timestamp: health.LastCheck,
		Details:   health,
	})
}
