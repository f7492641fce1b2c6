package metrics

import "github.com/ServiceWeaver/weaver/metrics"

type RegionLabel struct {
	Region string
}

type ContentTypeLabel struct {
	ContentType string
}

var (
	// feed service
	PostsProcessed = metrics.NewCounter(
		"sf_posts_processed",
		"The number of posts accepted for fan-out",
	)
	FanOutDeliveries = metrics.NewCounter(
		"sf_fanout_deliveries",
		"The number of post ids appended to a follower feed",
	)
	FanOutFailures = metrics.NewCounter(
		"sf_fanout_failures",
		"The number of feed appends that failed and were skipped",
	)
	FanOutAudienceSize = metrics.NewHistogram(
		"sf_fanout_audience_size",
		"Number of distinct recipients per fanned out post",
		metrics.NonNegativeBuckets,
	)
	FanOutDurationMs = metrics.NewHistogram(
		"sf_fanout_duration_ms",
		"Duration of a complete fan-out in milliseconds",
		metrics.NonNegativeBuckets,
	)
	// fan-out workers
	QueueDurationMs = metrics.NewHistogramMap[RegionLabel](
		"sf_queue_duration_ms",
		"Duration of queue in milliseconds in the current region",
		metrics.NonNegativeBuckets,
	)
	// repost service
	RepostCycles = metrics.NewCounter(
		"sf_repost_cycles",
		"The number of repost chains found to be cyclic or too deep",
	)
	// mention service
	MentionsResolved = metrics.NewCounterMap[ContentTypeLabel](
		"sf_mentions_resolved",
		"The number of mentions resolved to a user per content type",
	)
	MentionsDenied = metrics.NewCounterMap[ContentTypeLabel](
		"sf_mentions_denied",
		"The number of resolved mentions refused by the recipient policy",
	)
	// bootstrap on first access
	ProfilesCreated = metrics.NewCounter(
		"sf_weight_profiles_created",
		"The number of algorithm control profiles created on first access",
	)
	PoliciesCreated = metrics.NewCounter(
		"sf_mention_policies_created",
		"The number of mention policies created on first access",
	)
)
