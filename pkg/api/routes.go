// Package api exposes the import orchestration and stored episode data
// over HTTP.
package api

import (
	e "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires every endpoint onto the server.
func RegisterRoutes(server *e.Echo, importHandler *ImportHandler, episodeHandler *EpisodeHandler) {
	v1 := server.Group("/api/v1")
	v1.POST("/imports", importHandler.StartImport)
	v1.GET("/imports/:import_id", importHandler.ImportStatus)
	v1.POST("/updates", importHandler.TriggerUpdates)
	v1.POST("/retries", importHandler.RetryOperations)
	v1.GET("/episodes/:episode_id", episodeHandler.GetEpisode)
	v1.GET("/shows/:show_id/episodes", episodeHandler.ListShowEpisodes)
	v1.GET("/shows/:show_id/seasons/:season/episodes", episodeHandler.ListSeasonEpisodes)

	server.GET("/healthz", importHandler.Health)
	server.GET("/metrics", e.WrapHandler(promhttp.Handler()))
}

// NewServer builds the echo server with routes and middleware attached.
func NewServer(service ImportService, reader EpisodeReader) *e.Echo {
	server := e.New()
	server.HideBanner = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit("1M"))

	RegisterRoutes(server, NewImportHandler(service), NewEpisodeHandler(reader))
	return server
}
