package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"cargalibre/models"
	"cargalibre/services/sheets"
	"cargalibre/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CatalogSource yields the current list of open trips.
type CatalogSource interface {
	OpenTrips(ctx context.Context) ([]models.Trip, error)
}

// Catalog reads the open-trip sheet and keeps a short-lived copy in Redis so
// back-to-back matches don't hammer the spreadsheet API.
type Catalog struct {
	store  sheets.Store
	cache  *redis.Client
	logger *zap.Logger
}

func NewCatalog(store sheets.Store, cache *redis.Client, logger *zap.Logger) *Catalog {
	return &Catalog{store: store, cache: cache, logger: logger}
}

// OpenTrips returns the cached catalog when fresh, falling back to a sheet
// read. Cache failures only cost us the round trip, never the result.
func (c *Catalog) OpenTrips(ctx context.Context) ([]models.Trip, error) {
	if c.cache != nil {
		data, err := c.cache.Get(ctx, utils.TripCacheKey).Result()
		if err == nil {
			var trips []models.Trip
			if jsonErr := json.Unmarshal([]byte(data), &trips); jsonErr == nil {
				return trips, nil
			}
		} else if err != redis.Nil {
			c.logger.Warn("Trip cache read failed", zap.Error(err))
		}
	}
	return c.Refresh(ctx)
}

// Refresh reloads the catalog from the sheet and rewrites the cache entry.
func (c *Catalog) Refresh(ctx context.Context) ([]models.Trip, error) {
	rows, err := c.store.ReadRows(ctx, sheets.SheetOpenTrips, "A:I")
	if err != nil {
		return nil, fmt.Errorf("dispatch: load open trips: %w", err)
	}
	trips := parseTrips(rows)

	if c.cache != nil {
		if data, err := json.Marshal(trips); err == nil {
			if err := c.cache.Set(ctx, utils.TripCacheKey, data, utils.TripCacheTTL).Err(); err != nil {
				c.logger.Warn("Trip cache write failed", zap.Error(err))
			}
		}
	}
	return trips, nil
}

// parseTrips converts raw sheet rows into trips. The first row is the header.
// Columns: cargoType, weight, volume, origin, originLat, originLon,
// destination, pickupTime, price.
func parseTrips(rows [][]interface{}) []models.Trip {
	if len(rows) <= 1 {
		return nil
	}
	trips := make([]models.Trip, 0, len(rows)-1)
	for _, row := range rows[1:] {
		trip := models.Trip{
			CargoType:   cellString(row, 0),
			Weight:      cellFloat(row, 1, 0),
			Volume:      cellFloat(row, 2, 0),
			Origin:      cellString(row, 3),
			OriginLat:   cellFloat(row, 4, 0),
			OriginLon:   cellFloat(row, 5, 0),
			Destination: cellString(row, 6),
			PickupTime:  cellString(row, 7),
			Price:       cellFloat(row, 8, 0),
		}
		if trip.PickupTime == "" {
			trip.PickupTime = time.Now().Format(time.RFC3339)
		}
		trips = append(trips, trip)
	}
	return trips
}

func cellString(row []interface{}, idx int) string {
	if idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}

func cellFloat(row []interface{}, idx int, def float64) float64 {
	s := cellString(row, idx)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
