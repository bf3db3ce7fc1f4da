package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/health", handler.Health)
		api.GET("/cities/list", handler.ListCities)
		api.GET("/summary", handler.GetSummary)
		api.GET("/geocode", handler.Geocode)

		api.GET("/properties", handler.GetProperties)
		api.GET("/properties/by-zone", handler.GetPropertiesByZone)
		api.POST("/properties/batch", handler.IngestBatch)

		api.GET("/zone-statistics", handler.GetZoneStatistics)
		api.GET("/zone-statistics-full", handler.GetZoneStatisticsFull)
		api.GET("/zone-statistics/geojson", handler.GetZoneGeoJSON)
		api.GET("/zone-details", handler.GetZoneDetails)
		api.GET("/all-postal-codes", handler.GetAllPostalCodes)
	}
}
