// Package geocode resolves free-text place names through an external
// Nominatim-compatible service. Results are cached in redis when available.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"backend-strideup/internal/apperr"
	"backend-strideup/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	cachePrefix  = "geocode:"
	defaultLimit = 5
)

type Place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type Client struct {
	cfg   Config
	cache *redis.Client
	log   *logger.Logger
}

func New(cfg Config, cache *redis.Client, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &Client{cfg: cfg, cache: cache, log: logger.OrNop(log).With("client", "geocoder")}
}

// nominatim returns coordinates as strings.
type result struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat,string"`
	Lon         float64 `json:"lon,string"`
}

func (c *Client) Search(ctx context.Context, text string) ([]Place, error) {
	q := normalize(text)
	if q == "" {
		return nil, apperr.Validation("query is required")
	}
	if c.cfg.BaseURL == "" {
		return nil, apperr.External("geocoder unavailable", fmt.Errorf("no geocoder configured"))
	}

	if places, ok := c.cached(ctx, q); ok {
		return places, nil
	}

	places, err := c.fetch(q)
	if err != nil {
		c.log.Warn("geocode lookup failed", "query", q, "error", err)
		return nil, apperr.External("geocoder unavailable", err)
	}
	c.store(ctx, q, places)
	return places, nil
}

func (c *Client) fetch(q string) ([]Place, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("limit", fmt.Sprint(defaultLimit))

	agent := fiber.Get(c.cfg.BaseURL + "?" + params.Encode())
	agent.Timeout(c.cfg.Timeout)
	agent.UserAgent("StrideUp/1.0")
	if err := agent.Parse(); err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if code != fiber.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", code)
	}

	var raw []result
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		places = append(places, Place{Name: r.DisplayName, Latitude: r.Lat, Longitude: r.Lon})
	}
	return places, nil
}

func (c *Client) cached(ctx context.Context, q string) ([]Place, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, cachePrefix+q).Bytes()
	if err != nil {
		return nil, false
	}
	var places []Place
	if err := json.Unmarshal(raw, &places); err != nil {
		return nil, false
	}
	return places, true
}

func (c *Client) store(ctx context.Context, q string, places []Place) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(places)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cachePrefix+q, raw, c.cfg.CacheTTL).Err(); err != nil {
		c.log.Warn("geocode cache write failed", "error", err)
	}
}

func normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
