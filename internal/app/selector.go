package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/bossjones/boss-bot/internal/domain"
)

var (
	aiSelectionRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bossbot_ai_selection_requests_total",
		Help: "Total number of strategy selection calls sent to the AI model.",
	})
	aiSelectionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bossbot_ai_selection_failures_total",
		Help: "Total number of AI strategy selection calls that failed or returned garbage.",
	})
	aiSelectionCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bossbot_ai_selection_cache_hits_total",
		Help: "Total number of AI suggestions served from the in-memory cache.",
	})
	aiSelectionCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bossbot_ai_selection_cache_misses_total",
		Help: "Total number of AI suggestion cache misses.",
	})
)

// aiSuggestion is the JSON object the model is prompted to return.
type aiSuggestion struct {
	Platform   string         `json:"platform"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
	Options    map[string]any `json:"options"`
}

// StrategySelector decides which download strategy handles a request. The
// deterministic baseline comes from URL pattern matching against the
// registry; when the AI flag is on, a model suggestion can override the
// baseline if it names a registered strategy with strictly higher confidence.
// Selection never fails: every AI problem degrades to the baseline decision.
type StrategySelector struct {
	flags    domain.FeatureFlags
	registry *StrategyRegistry
	model    domain.ModelClient
	cache    *expirable.LRU[string, aiSuggestion]
	logger   *zap.Logger
}

// NewStrategySelector creates a strategy selector. model may be nil, in which
// case the AI path is disabled regardless of flags.
func NewStrategySelector(flags domain.FeatureFlags, aiCfg domain.AIConfig, registry *StrategyRegistry, model domain.ModelClient, log *zap.Logger) *StrategySelector {
	return &StrategySelector{
		flags:    flags,
		registry: registry,
		model:    model,
		cache:    expirable.NewLRU[string, aiSuggestion](aiCfg.CacheSize, nil, aiCfg.CacheTTL),
		logger:   log,
	}
}

// Select produces the strategy decision for a request
func (s *StrategySelector) Select(ctx context.Context, req *domain.DownloadRequest) *domain.StrategyDecision {
	if override := s.userOverride(req); override != nil {
		return override
	}

	baseline := s.baselineDecision(req.URL)
	if !s.flags.AIStrategySelection || s.model == nil {
		return baseline
	}

	suggestion, err := s.suggest(ctx, req.URL)
	if err != nil {
		aiSelectionFailures.Inc()
		if s.flags.AIFallbackOnFailure {
			s.logger.Warn("ai strategy selection failed, using baseline",
				zap.String("url", req.URL),
				zap.Error(err))
		} else {
			s.logger.Error("ai strategy selection failed, using baseline",
				zap.String("url", req.URL),
				zap.Error(err))
		}
		return baseline
	}

	return s.merge(baseline, suggestion, req.URL)
}

// userOverride honors an explicit "platform" preference naming a registered
// strategy. Unknown names are ignored.
func (s *StrategySelector) userOverride(req *domain.DownloadRequest) *domain.StrategyDecision {
	name, ok := req.Preferences["platform"].(string)
	if !ok || name == "" {
		return nil
	}
	if _, registered := s.registry.ByName(name); !registered {
		s.logger.Warn("ignoring unknown platform preference",
			zap.String("platform", name),
			zap.String("url", req.URL))
		return nil
	}
	return &domain.StrategyDecision{
		StrategyName:       name,
		Confidence:         1.0,
		Reasoning:          "user override",
		RecommendedOptions: baselineOptions(name),
	}
}

func (s *StrategySelector) baselineDecision(url string) *domain.StrategyDecision {
	matched := s.registry.Match(url)
	if matched == nil || matched.Name() == domain.PlatformGeneric {
		return &domain.StrategyDecision{
			StrategyName:       domain.PlatformGeneric,
			Confidence:         0,
			Reasoning:          "no platform pattern matched, using generic downloader",
			RecommendedOptions: baselineOptions(domain.PlatformGeneric),
		}
	}
	return &domain.StrategyDecision{
		StrategyName:       matched.Name(),
		Confidence:         0.7,
		Reasoning:          fmt.Sprintf("url matched %s pattern", matched.Name()),
		RecommendedOptions: baselineOptions(matched.Name()),
	}
}

// baselineOptions returns the per-platform default download options. The
// returned map is always a fresh copy the caller may mutate.
func baselineOptions(name string) map[string]any {
	options := make(map[string]any)
	if name == domain.PlatformYouTube {
		options["quality"] = "1080p"
	}
	return options
}

// suggest returns the cached or freshly fetched model suggestion for a URL.
// The cache key is the URL alone, so the prompt must not depend on anything
// request-specific.
func (s *StrategySelector) suggest(ctx context.Context, url string) (aiSuggestion, error) {
	if cached, ok := s.cache.Get(url); ok {
		aiSelectionCacheHits.Inc()
		return cached, nil
	}
	aiSelectionCacheMisses.Inc()
	aiSelectionRequests.Inc()

	timeout := s.flags.AITimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := s.model.Complete(callCtx, s.buildPrompt(url))
	if err != nil {
		return aiSuggestion{}, fmt.Errorf("model completion: %w", err)
	}

	suggestion, err := parseSuggestion(raw)
	if err != nil {
		return aiSuggestion{}, err
	}

	s.cache.Add(url, suggestion)
	return suggestion, nil
}

func (s *StrategySelector) buildPrompt(url string) string {
	return fmt.Sprintf(`You route media download requests to a downloader strategy.
Available strategies: %s.
URL: %s
Respond with a single JSON object and no prose:
{"platform": "<strategy name>", "confidence": <number 0.0-1.0>, "reasoning": "<one sentence>", "options": {}}`,
		strings.Join(s.registry.Names(), ", "), url)
}

// merge applies the model suggestion on top of the baseline. The suggestion
// wins only when it names a registered strategy with strictly higher
// confidence; ties and unknown names keep the deterministic result.
func (s *StrategySelector) merge(baseline *domain.StrategyDecision, suggestion aiSuggestion, url string) *domain.StrategyDecision {
	if _, registered := s.registry.ByName(suggestion.Platform); !registered {
		s.logger.Warn("model suggested unknown strategy, keeping baseline",
			zap.String("suggested", suggestion.Platform),
			zap.String("url", url))
		return baseline
	}

	confidence := domain.ClampConfidence(suggestion.Confidence)
	if confidence <= baseline.Confidence {
		return baseline
	}

	options := baselineOptions(suggestion.Platform)
	for k, v := range suggestion.Options {
		options[k] = v
	}
	reasoning := suggestion.Reasoning
	if reasoning == "" {
		reasoning = "model suggestion"
	}
	return &domain.StrategyDecision{
		StrategyName:       suggestion.Platform,
		Confidence:         confidence,
		Reasoning:          reasoning,
		AIEnhanced:         true,
		RecommendedOptions: options,
	}
}

// parseSuggestion decodes the model response, tolerating fenced code blocks
// around the JSON object.
func parseSuggestion(raw string) (aiSuggestion, error) {
	cleaned := stripCodeFence(raw)

	var suggestion aiSuggestion
	if err := json.Unmarshal([]byte(cleaned), &suggestion); err != nil {
		return aiSuggestion{}, fmt.Errorf("parse model response: %w", err)
	}
	if suggestion.Platform == "" {
		return aiSuggestion{}, fmt.Errorf("model response missing platform")
	}
	return suggestion, nil
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	// Drop the language tag on the opening fence line, e.g. ```json
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
