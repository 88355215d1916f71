package constants

// Redis keys
const (
	RedisKeyRecentConversions = "conversions:recent"
)

// Redis Pub/Sub channels
const (
	PubSubChannelConversions = "conversions:live"
	PubSubChannelDeposits    = "conversions:deposits"
	PubSubChannelRedemptions = "conversions:redemptions"
)

// Limits
const (
	MaxRecentConversions = 100
)
