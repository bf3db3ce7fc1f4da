package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"toperty/server/config"
)

var (
	ErrNoAPIKey       = errors.New("geocoding api key not configured")
	ErrNoResults      = errors.New("address not found")
	ErrProviderStatus = errors.New("geocoding provider returned an error status")
)

// Location is a resolved address.
type Location struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	FormattedAddress string  `json:"formatted_address"`
}

// Geocoder resolves free-text addresses with the Google Geocoding API and
// remembers successful lookups on disk.
type Geocoder struct {
	logger    *logrus.Logger
	apiKey    string
	baseURL   string
	region    string
	language  string
	cacheDir  string
	cache     map[string]Location
	cacheLock sync.RWMutex
	saveLock  sync.Mutex
	client    *http.Client
}

func NewGeocoder(cfg *config.Config, logger *logrus.Logger) *Geocoder {
	g := &Geocoder{
		logger:   logger,
		apiKey:   cfg.Geocoding.APIKey,
		baseURL:  cfg.Geocoding.BaseURL,
		region:   cfg.Geocoding.Region,
		language: cfg.Geocoding.Language,
		cacheDir: cfg.Geocoding.CacheDir,
		cache:    make(map[string]Location),
		client:   &http.Client{Timeout: cfg.Geocoding.Timeout},
	}

	if g.cacheDir != "" {
		if err := os.MkdirAll(g.cacheDir, 0755); err != nil {
			logger.WithError(err).Warn("Could not create geocode cache directory")
		}
		g.loadCache()
	}
	return g
}

func (g *Geocoder) cacheFile() string {
	return filepath.Join(g.cacheDir, "geocode_cache.json")
}

func (g *Geocoder) loadCache() {
	data, err := os.ReadFile(g.cacheFile())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			g.logger.Warnf("Could not load geocode cache: %v", err)
		}
		return
	}

	if err := json.Unmarshal(data, &g.cache); err != nil {
		g.logger.Errorf("Failed to parse geocode cache: %v", err)
		return
	}

	g.logger.Infof("Loaded %d cached addresses", len(g.cache))
}

func (g *Geocoder) saveCache() {
	g.saveLock.Lock()
	defer g.saveLock.Unlock()

	g.cacheLock.RLock()
	data, err := json.Marshal(g.cache)
	g.cacheLock.RUnlock()
	if err != nil {
		g.logger.Errorf("Failed to marshal geocode cache: %v", err)
		return
	}

	if err := os.WriteFile(g.cacheFile(), data, 0644); err != nil {
		g.logger.Errorf("Failed to save geocode cache: %v", err)
	}
}

type googleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func cacheKey(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// Geocode resolves address to its first match. Failures are reported as
// errors; callers decide whether to degrade.
func (g *Geocoder) Geocode(ctx context.Context, address string) (Location, error) {
	key := cacheKey(address)
	if key == "" {
		return Location{}, fmt.Errorf("%w: empty address", ErrNoResults)
	}

	g.cacheLock.RLock()
	if loc, ok := g.cache[key]; ok {
		g.cacheLock.RUnlock()
		g.logger.WithFields(logrus.Fields{"address": address, "source": "cache"}).Debug("Found coordinates in cache")
		return loc, nil
	}
	g.cacheLock.RUnlock()

	if g.apiKey == "" {
		return Location{}, ErrNoAPIKey
	}

	params := url.Values{
		"address":  []string{address},
		"key":      []string{g.apiKey},
		"region":   []string{g.region},
		"language": []string{g.language},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL, nil)
	if err != nil {
		return Location{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.URL.RawQuery = params.Encode()

	resp, err := g.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Location{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("%w: http %d", ErrProviderStatus, resp.StatusCode)
	}

	var result googleResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return Location{}, fmt.Errorf("failed to parse response: %w", err)
	}

	switch {
	case result.Status == "ZERO_RESULTS" || (result.Status == "OK" && len(result.Results) == 0):
		return Location{}, fmt.Errorf("%w: %s", ErrNoResults, address)
	case result.Status != "OK":
		return Location{}, fmt.Errorf("%w: %s %s", ErrProviderStatus, result.Status, result.ErrorMessage)
	}

	first := result.Results[0]
	loc := Location{
		Latitude:         first.Geometry.Location.Lat,
		Longitude:        first.Geometry.Location.Lng,
		FormattedAddress: first.FormattedAddress,
	}

	g.logger.WithFields(logrus.Fields{
		"address":   address,
		"latitude":  loc.Latitude,
		"longitude": loc.Longitude,
		"source":    "google",
	}).Info("Successfully geocoded address")

	g.cacheLock.Lock()
	g.cache[key] = loc
	g.cacheLock.Unlock()

	if g.cacheDir != "" {
		go g.saveCache()
	}
	return loc, nil
}
