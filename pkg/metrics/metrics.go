package metrics

import "github.com/ServiceWeaver/weaver/metrics"

type RegionLabel struct {
	Region string
}

var (
	// post service
	CreatedPosts = metrics.NewCounterMap[RegionLabel](
		"sn_created_posts",
		"The number of created posts in the current region",
	)
	DeletedPosts = metrics.NewCounterMap[RegionLabel](
		"sn_deleted_posts",
		"The number of deleted posts in the current region",
	)
	LikeToggles = metrics.NewCounterMap[RegionLabel](
		"sn_like_toggles",
		"The number of like/unlike toggles in the current region",
	)
	ReportsFiled = metrics.NewCounterMap[RegionLabel](
		"sn_reports_filed",
		"The number of post reports filed in the current region",
	)
	ModerationFlags = metrics.NewCounterMap[RegionLabel](
		"sn_moderation_flags",
		"The number of posts that crossed the moderation threshold in the current region",
	)
	CreatePostDurationMs = metrics.NewHistogramMap[RegionLabel](
		"sn_create_post_duration_ms",
		"Duration of post creation in milliseconds in the current region",
		metrics.NonNegativeBuckets,
	)
	// post cache
	CacheHits = metrics.NewCounterMap[RegionLabel](
		"sn_cache_hits",
		"The number of post cache hits in the current region",
	)
	CacheMisses = metrics.NewCounterMap[RegionLabel](
		"sn_cache_misses",
		"The number of post cache misses in the current region",
	)
	// search index
	SearchDurationMs = metrics.NewHistogramMap[RegionLabel](
		"sn_search_duration_ms",
		"Duration of search queries in milliseconds in the current region",
		metrics.NonNegativeBuckets,
	)
	Inconsistencies = metrics.NewCounterMap[RegionLabel](
		"sn_inconsistencies",
		"The number of times the search index diverged from the post store in the current region",
	)
	// notification dispatch
	PublishedNotifications = metrics.NewCounterMap[RegionLabel](
		"sn_published_notifications",
		"The number of published notifications in the current region",
	)
	ReceivedNotifications = metrics.NewCounterMap[RegionLabel](
		"sn_received_notifications",
		"The number of received notifications in the current region",
	)
)
