package bus

import (
	"fmt"

	"github.com/orbcast/orbcast/internal/common/config"

	"go.uber.org/zap"
)

// Type represents the type of event bus
type Type string

const (
	// TypeChannel represents the in-process event bus
	TypeChannel Type = "channel"
	// TypeRedis represents the Redis-stream event bus
	TypeRedis Type = "redis"
)

// NewBus creates a new event bus based on configuration
func NewBus(logger *zap.Logger, cfg *config.BusConfig) (Bus, error) {
	logger.Info("Initializing event bus",
		zap.String("type", cfg.Type),
		zap.String("role", cfg.Role))
	switch Type(cfg.Type) {
	case TypeChannel:
		return NewChannelBus(logger, config.BusRole(cfg.Role)), nil
	case TypeRedis:
		return NewRedisBus(logger, cfg.Redis, config.BusRole(cfg.Role))
	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
