package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"toperty/server/config"
	"toperty/server/internal/filter"
	"toperty/server/internal/geocoding"
	"toperty/server/internal/ingest"
	"toperty/server/internal/logging"
	"toperty/server/internal/models"
	"toperty/server/internal/search"
	"toperty/server/internal/zones"
)

// maxBatchBody bounds the request body of a listing batch.
const maxBatchBody = 8 << 20

// Catalog is the part of the store the handlers use directly.
type Catalog interface {
	Cities(ctx context.Context) ([]models.City, error)
	PropertySummary(ctx context.Context, day time.Time) (*models.PropertySummary, error)
	Ping(ctx context.Context) error
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (geocoding.Location, error)
}

// ListingQueue receives ingested batches. *queue.ListingQueue satisfies it.
type ListingQueue interface {
	ingest.Pusher
	Len() int
	Cap() int
}

type Handler struct {
	catalog    Catalog
	engine     *search.Engine
	aggregator *zones.Aggregator
	geocoder   Geocoder
	listings   ListingQueue
	maxBatch   int
	location   *time.Location
	now        func() time.Time
	logger     *logrus.Logger
}

func NewHandler(catalog Catalog, engine *search.Engine, aggregator *zones.Aggregator, geocoder Geocoder, listings ListingQueue, cfg *config.Config, logger *logrus.Logger) *Handler {
	return &Handler{
		catalog:    catalog,
		engine:     engine,
		aggregator: aggregator,
		geocoder:   geocoder,
		listings:   listings,
		maxBatch:   cfg.BatchProcessing.MaxBatchSize,
		location:   cfg.Location(),
		now:        time.Now,
		logger:     logger,
	}
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.catalog.Ping(c.Request.Context()); err != nil {
		h.fail(c, fmt.Errorf("store unavailable: %w", err), "Health check failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Backend is running",
		"queue": gin.H{
			"pending":  h.listings.Len(),
			"capacity": h.listings.Cap(),
		},
	})
}

func (h *Handler) ListCities(c *gin.Context) {
	cities, err := h.catalog.Cities(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to list cities")
		return
	}
	out := make([]gin.H, 0, len(cities))
	for _, city := range cities {
		entry := gin.H{"id": city.ID, "name": city.Name}
		if defaults := config.GetCityByName(city.WebsiteName); defaults != nil {
			entry["center"] = defaults.Center
			entry["zoom_level"] = defaults.ZoomLevel
		}
		out = append(out, entry)
	}
	respond(c, http.StatusOK, out)
}

// GetSummary reports listing counts for date, today in the configured
// timezone by default.
func (h *Handler) GetSummary(c *gin.Context) {
	date, err := queryDate(c, "date")
	if err != nil {
		h.fail(c, err, "Invalid summary parameters")
		return
	}
	if date == nil {
		now := h.now().In(h.location)
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		date = &today
	}

	summary, err := h.catalog.PropertySummary(c.Request.Context(), *date)
	if err != nil {
		h.fail(c, err, "Failed to summarize properties")
		return
	}
	respond(c, http.StatusOK, summary)
}

func (h *Handler) GetProperties(c *gin.Context) {
	q, err := parseSearchQuery(c)
	if err != nil {
		h.fail(c, err, "Invalid property search parameters")
		return
	}

	result, err := h.engine.Search(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err, "Failed to search properties")
		return
	}

	properties := make([]PropertyView, 0, len(result.Items))
	for _, item := range result.Items {
		properties = append(properties, presentProperty(item))
	}
	data := gin.H{
		"properties": properties,
		"pagination": result.Pagination,
	}
	if result.SearchLocation != nil {
		data["search_location"] = result.SearchLocation
	}
	respond(c, http.StatusOK, data)
}

func (h *Handler) GetPropertiesByZone(c *gin.Context) {
	q, err := parseZoneListingQuery(c)
	if err != nil {
		h.fail(c, err, "Invalid zone listing parameters")
		return
	}

	listing, err := h.engine.ByZone(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err, "Failed to list properties by zone")
		return
	}

	properties := make([]ZoneListingView, 0, len(listing.Properties))
	for _, p := range listing.Properties {
		properties = append(properties, presentZoneListing(p))
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"boundary_type": c.Query("boundary_type"),
		"data": gin.H{
			"properties": properties,
			"summary":    listing.Summary,
		},
	})
}

// IngestBatch validates a listing batch and queues it for the processor.
func (h *Handler) IngestBatch(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBatchBody))
	if err != nil {
		h.fail(c, fmt.Errorf("%w: %v", ingest.ErrInvalidBatch, err), "Failed to read listing batch")
		return
	}

	listings, err := ingest.Decode(body, h.maxBatch)
	if err != nil {
		h.fail(c, err, "Rejected listing batch")
		return
	}
	if err := h.listings.Push(listings); err != nil {
		h.fail(c, err, "Failed to queue listing batch")
		return
	}

	logging.Entry(c, h.logger).WithField("batch_size", len(listings)).Info("Queued listing batch")
	respond(c, http.StatusAccepted, gin.H{"accepted": len(listings)})
}

func (h *Handler) Geocode(c *gin.Context) {
	address := strings.TrimSpace(c.Query("address"))
	if address == "" {
		h.fail(c, fmt.Errorf("%w: address is required", filter.ErrInvalidFilter), "Missing address")
		return
	}
	loc, err := h.geocoder.Geocode(c.Request.Context(), address)
	if err != nil {
		h.fail(c, err, "Failed to geocode address")
		return
	}
	respond(c, http.StatusOK, loc)
}

func (h *Handler) zoneStatistics(c *gin.Context, mode zones.Mode) {
	q, err := parseZoneQuery(c, mode)
	if err != nil {
		h.fail(c, err, "Invalid zone statistics parameters")
		return
	}
	summaries, err := h.aggregator.Aggregate(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err, "Failed to aggregate zones")
		return
	}
	respond(c, http.StatusOK, summaries)
}

func (h *Handler) GetZoneStatistics(c *gin.Context) {
	h.zoneStatistics(c, zones.Basic)
}

func (h *Handler) GetZoneStatisticsFull(c *gin.Context) {
	h.zoneStatistics(c, zones.Full)
}

// GetZoneGeoJSON serves the full zone statistics as a bare FeatureCollection.
func (h *Handler) GetZoneGeoJSON(c *gin.Context) {
	q, err := parseZoneQuery(c, zones.Full)
	if err != nil {
		h.fail(c, err, "Invalid zone statistics parameters")
		return
	}
	fc, err := h.aggregator.GeoJSON(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err, "Failed to build zone GeoJSON")
		return
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		h.fail(c, err, "Failed to encode zone GeoJSON")
		return
	}
	c.Data(http.StatusOK, "application/geo+json", b)
}

func (h *Handler) GetZoneDetails(c *gin.Context) {
	q, err := parseDetailQuery(c)
	if err != nil {
		h.fail(c, err, "Invalid zone detail parameters")
		return
	}
	detail, err := h.aggregator.Detail(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err, "Failed to compute zone details")
		return
	}
	respond(c, http.StatusOK, detail)
}

func (h *Handler) GetAllPostalCodes(c *gin.Context) {
	cityID, err := queryInt64(c, "city_id")
	if err != nil {
		h.fail(c, err, "Invalid postal code parameters")
		return
	}
	codes, err := h.aggregator.PostalCodes(c.Request.Context(), cityID)
	if err != nil {
		h.fail(c, err, "Failed to list postal codes")
		return
	}
	if codes == nil {
		codes = []models.PostalCodeStats{}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   codes,
		"stats": gin.H{
			"total_codes":              len(codes),
			"codes_with_properties":    len(codes),
			"codes_without_properties": 0,
		},
	})
}
