package cnst

const (
	// EventTypeAsset is the event type discriminator for asset lifecycle events
	EventTypeAsset = "asset"
	// EventTypeAttribute is the event type discriminator for attribute-value events
	EventTypeAttribute = "attribute"
)

const (
	// MessageEventTriggered is the session message event for a triggered subscription
	MessageEventTriggered = "triggered"
)

const (
	// InternalSessionKey is the reserved session key for server-internal subscribers
	InternalSessionKey = "internal"
)

const (
	// RedisClusterTypeSingle represents a single-node Redis deployment
	RedisClusterTypeSingle = "single"
	// RedisClusterTypeCluster represents a Redis cluster deployment
	RedisClusterTypeCluster = "cluster"
	// RedisClusterTypeSentinel represents a sentinel-managed Redis deployment
	RedisClusterTypeSentinel = "sentinel"
)
