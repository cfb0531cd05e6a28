package cron

import (
	"context"
	"time"

	"cargalibre/services/dispatch"
	"cargalibre/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// InitCatalogWarmer refreshes the open-trip catalog cache on a schedule so
// matches after a completed registration read warm data. Failures are logged
// and retried on the next tick.
func InitCatalogWarmer(catalog *dispatch.Catalog) *cron.Cron {
	logger := utils.GetLogger()

	c := cron.New()
	_, err := c.AddFunc("@every 5m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := catalog.Refresh(ctx); err != nil {
			logger.Warn("Catalog refresh failed", zap.Error(err))
			return
		}
		logger.Debug("Catalog cache refreshed")
	})
	if err != nil {
		logger.Error("Failed to schedule catalog warmer", zap.Error(err))
		return c
	}

	c.Start()
	return c
}
