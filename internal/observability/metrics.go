package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace prefixes every metric (vibe_pricing_...).
const namespace = "vibe_pricing"

// lowLatencyBuckets resolve the sub-millisecond to 100ms range that price and cart lookups live in.
var lowLatencyBuckets = []float64{.0005, .001, .002, .005, .010, .025, .050, .100, .250}

var (
	// -------------------------------------------------------------------------
	// CACHE TIERS
	// -------------------------------------------------------------------------

	// CacheTierHits counts reads answered by a tier.
	// Metric: vibe_pricing_cache_tier_hits_total{tier}
	CacheTierHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "tier_hits_total",
		Help:      "Cache reads answered by the given tier",
	}, []string{"tier"})

	CacheTierMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "tier_misses_total",
		Help:      "Cache reads the given tier could not answer",
	}, []string{"tier"})

	// CacheTierErrors counts tier failures that were swallowed and degraded to a miss/no-op.
	CacheTierErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "tier_errors_total",
		Help:      "Cache tier operations that failed and were treated as a miss or no-op",
	}, []string{"tier", "op"})

	CacheBackfills = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "backfills_total",
		Help:      "Values copied into a faster tier after a hit in a slower one",
	}, []string{"tier"})

	// -------------------------------------------------------------------------
	// RULE COMPILER
	// -------------------------------------------------------------------------

	// IndexCompilations counts index rebuilds by outcome (success, store_error).
	IndexCompilations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "compiler",
		Name:      "index_builds_total",
		Help:      "Compiled index rebuilds by outcome",
	}, []string{"outcome"})

	IndexCompileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "compiler",
		Name:      "index_build_seconds",
		Help:      "Time taken to load and compile the active rule set",
		Buckets:   prometheus.DefBuckets,
	})

	IndexRules = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "compiler",
		Name:      "index_rules",
		Help:      "Number of rules in the most recently compiled index",
	})

	// MalformedRuleFields counts rule blobs that failed to parse and fell back to a default.
	MalformedRuleFields = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "compiler",
		Name:      "malformed_fields_total",
		Help:      "Rule fields that could not be parsed and compiled to their fallback",
	}, []string{"field"})

	IndexInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "compiler",
		Name:      "invalidations_total",
		Help:      "Explicit compiled index invalidations",
	})

	// -------------------------------------------------------------------------
	// PRICING ENGINE
	// -------------------------------------------------------------------------

	// PriceResolutions counts GetDynamicPrice calls by outcome (cache_hit, applied, no_rule, invalid).
	PriceResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "price_resolutions_total",
		Help:      "Dynamic price resolutions by outcome",
	}, []string{"outcome", "context_type"})

	PriceResolutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "price_resolution_seconds",
		Help:      "Time taken to resolve a dynamic price, cache hits included",
		Buckets:   lowLatencyBuckets,
	})

	// -------------------------------------------------------------------------
	// CART PROCESSOR
	// -------------------------------------------------------------------------

	// CartAnalyses counts cart evaluations by outcome (cache_hit, computed, empty, batch_load_failed, degraded_index).
	CartAnalyses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "analyses_total",
		Help:      "Cart analyses by outcome",
	}, []string{"outcome"})

	CartAnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "analysis_seconds",
		Help:      "Time taken to analyse a cart, cache hits included",
		Buckets:   lowLatencyBuckets,
	})

	// -------------------------------------------------------------------------
	// SWEEPER
	// -------------------------------------------------------------------------

	SweeperRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sweeper",
		Name:      "runs_total",
		Help:      "Maintenance job runs by job and status",
	}, []string{"job", "status"})

	SweeperPurgedRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sweeper",
		Name:      "purged_rows_total",
		Help:      "Expired durable cache rows deleted",
	})
)
