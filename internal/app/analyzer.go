package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/bossjones/boss-bot/internal/domain"
)

var (
	aiAnalysisRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bossbot_ai_analysis_requests_total",
		Help: "Total number of content analysis runs that consulted the AI model.",
	})
	aiAnalysisProbeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bossbot_ai_analysis_probe_failures_total",
		Help: "Total number of analysis probes that failed and fell back to the neutral default.",
	}, []string{"probe"})
)

// ContentAnalyzer produces advisory quality, safety, and engagement signals
// for a URL. The three probes run concurrently under one shared timeout; a
// probe failure degrades only its own field to the neutral default. When the
// feature flag is off or no model is configured, Analyze returns nil without
// touching the model.
type ContentAnalyzer struct {
	flags  domain.FeatureFlags
	model  domain.ModelClient
	logger *zap.Logger
}

// NewContentAnalyzer creates a content analyzer. model may be nil.
func NewContentAnalyzer(flags domain.FeatureFlags, model domain.ModelClient, log *zap.Logger) *ContentAnalyzer {
	return &ContentAnalyzer{
		flags:  flags,
		model:  model,
		logger: log,
	}
}

// enrichment is the JSON object the enrichment probe asks the model for.
type enrichment struct {
	Engagement string `json:"engagement"`
	Notes      string `json:"notes"`
}

// Analyze runs the probes for a URL. Never returns an error: the worst
// outcome is a fully neutral analysis.
func (a *ContentAnalyzer) Analyze(ctx context.Context, url string) *domain.ContentAnalysis {
	if !a.flags.AIContentAnalysis || a.model == nil {
		return nil
	}
	aiAnalysisRequests.Inc()

	timeout := a.flags.AITimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		wg sync.WaitGroup

		quality    float64
		qualityErr error

		enriched  enrichment
		enrichErr error

		unsafe    bool
		safetyErr error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		quality, qualityErr = a.probeQuality(probeCtx, url)
	}()
	go func() {
		defer wg.Done()
		enriched, enrichErr = a.probeEnrichment(probeCtx, url)
	}()
	go func() {
		defer wg.Done()
		unsafe, safetyErr = a.probeSafety(probeCtx, url)
	}()
	wg.Wait()

	analysis := domain.NeutralAnalysis()
	var defaulted []string

	if qualityErr != nil {
		aiAnalysisProbeFailures.WithLabelValues("quality").Inc()
		a.logger.Warn("quality probe failed", zap.String("url", url), zap.Error(qualityErr))
		defaulted = append(defaulted, "quality")
	} else {
		analysis.QualityScore = clampQuality(quality)
	}

	if enrichErr != nil {
		aiAnalysisProbeFailures.WithLabelValues("enrichment").Inc()
		a.logger.Warn("enrichment probe failed", zap.String("url", url), zap.Error(enrichErr))
		defaulted = append(defaulted, "enrichment")
	} else {
		analysis.EngagementPrediction = domain.EngagementLevel(enriched.Engagement)
	}

	if safetyErr != nil {
		aiAnalysisProbeFailures.WithLabelValues("safety").Inc()
		a.logger.Warn("safety probe failed", zap.String("url", url), zap.Error(safetyErr))
		defaulted = append(defaulted, "safety")
	} else {
		analysis.SafetyFlag = unsafe
	}

	var notes []string
	if enrichErr == nil && enriched.Notes != "" {
		notes = append(notes, enriched.Notes)
	}
	if len(defaulted) > 0 {
		notes = append(notes, "defaulted probes: "+strings.Join(defaulted, ", "))
	}
	analysis.Notes = strings.Join(notes, "; ")

	return analysis
}

func (a *ContentAnalyzer) probeQuality(ctx context.Context, url string) (float64, error) {
	prompt := fmt.Sprintf(
		"Rate the likely media quality of the content at this URL on a scale of 0 to 10.\nURL: %s\nRespond with a single number and nothing else.",
		url)
	raw, err := a.model.Complete(ctx, prompt)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty quality response")
	}
	score, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "/10"), 64)
	if err != nil {
		return 0, fmt.Errorf("parse quality score %q: %w", raw, err)
	}
	return score, nil
}

func (a *ContentAnalyzer) probeEnrichment(ctx context.Context, url string) (enrichment, error) {
	prompt := fmt.Sprintf(
		"Predict audience engagement for the media at this URL.\nURL: %s\nRespond with a single JSON object and no prose:\n{\"engagement\": \"low\"|\"medium\"|\"high\", \"notes\": \"<one sentence>\"}",
		url)
	raw, err := a.model.Complete(ctx, prompt)
	if err != nil {
		return enrichment{}, err
	}
	var result enrichment
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &result); err != nil {
		return enrichment{}, fmt.Errorf("parse enrichment response: %w", err)
	}
	switch domain.EngagementLevel(result.Engagement) {
	case domain.EngagementLow, domain.EngagementMedium, domain.EngagementHigh:
		return result, nil
	default:
		return enrichment{}, fmt.Errorf("unrecognized engagement level %q", result.Engagement)
	}
}

func (a *ContentAnalyzer) probeSafety(ctx context.Context, url string) (bool, error) {
	prompt := fmt.Sprintf(
		"Judge whether the content at this URL is likely unsafe to archive (explicit, violent, or illegal).\nURL: %s\nRespond with exactly one word: SAFE or UNSAFE.",
		url)
	raw, err := a.model.Complete(ctx, prompt)
	if err != nil {
		return false, err
	}
	verdict := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(verdict, "UNSAFE"):
		return true, nil
	case strings.HasPrefix(verdict, "SAFE"):
		return false, nil
	default:
		return false, fmt.Errorf("unrecognized safety verdict %q", raw)
	}
}

func clampQuality(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
