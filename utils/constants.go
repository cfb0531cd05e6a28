// File: utils/constants.go
package utils

import "time"

// TripCacheKey is the Redis key holding the cached open-trip catalog.
const TripCacheKey = "trips:open"

// TripCacheTTL is the time-to-live for the cached open-trip catalog.
const TripCacheTTL = 5 * time.Minute
