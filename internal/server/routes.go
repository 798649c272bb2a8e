package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.Use(NewEchoLogger(s.logger))
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Session-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.Use(s.SessionMiddleware)

	e.GET("/api/health", s.healthHandler)
	e.GET("/api/ws", s.StreamAssetUpdates)

	var assetGroup = e.Group("/api/v1/assets")
	assetGroup.GET("", s.ListAssets)
	assetGroup.GET("/:id", s.GetAssetByID)
	assetGroup.POST("/:id/reservation", s.ReserveAsset)
	assetGroup.DELETE("/:id/reservation", s.ReleaseAsset)
	assetGroup.POST("/:id/transcriptions", s.SaveTranscription)
	assetGroup.POST("/:id/transcriptions/submit", s.SubmitAsset)

	var transcriptionGroup = e.Group("/api/v1/transcriptions")
	transcriptionGroup.POST("/:id/review", s.ReviewTranscription)

	var campaignGroup = e.Group("/api/v1/campaigns")
	campaignGroup.GET("", s.ListCampaigns)
	campaignGroup.GET("/:id", s.GetCampaignByID)

	e.GET("/api/v1/projects/:id", s.GetProjectByID)
	e.GET("/api/v1/items/:id", s.GetItemByID)

	return e
}

func (s *Server) healthHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.server.Health())
}
