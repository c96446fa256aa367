package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health pings the database and Redis. Dependencies that are not configured
// (memory storage, no Redis) report "disabled" and do not fail the check.
// With Redis up, the loyalty retry backlog is included.
func Health(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		body := gin.H{"db": "disabled", "redis": "disabled"}
		healthy := true

		if db != nil {
			body["db"] = "connected"
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
				body["db"] = "error"
				healthy = false
			}
		}
		if rdb != nil {
			body["redis"] = "connected"
			if rdb.Ping(ctx).Err() != nil {
				body["redis"] = "error"
				healthy = false
			} else if stats, err := worker.Stats(ctx, rdb, worker.QueueLoyaltyCredit); err == nil {
				body["loyalty_retry"] = stats
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		body["ok"] = healthy
		c.JSON(status, body)
	}
}
