package domain

// EngagementLevel is the predicted audience interest bucket for a URL.
type EngagementLevel string

const (
	EngagementLow    EngagementLevel = "low"
	EngagementMedium EngagementLevel = "medium"
	EngagementHigh   EngagementLevel = "high"
)

// StrategyDecision is the outcome of strategy selection for one URL.
type StrategyDecision struct {
	StrategyName       string         `json:"strategy_name"`
	Confidence         float64        `json:"confidence"`
	Reasoning          string         `json:"reasoning"`
	AIEnhanced         bool           `json:"ai_enhanced"`
	RecommendedOptions map[string]any `json:"recommended_options,omitempty"`
}

// ContentAnalysis carries advisory signals about a URL's content. Signals
// may tune download options and are recorded on results, but they never
// block or fail a download.
type ContentAnalysis struct {
	QualityScore         float64         `json:"quality_score"`
	EngagementPrediction EngagementLevel `json:"engagement_prediction"`
	SafetyFlag           bool            `json:"safety_flag"`
	Notes                string          `json:"notes,omitempty"`
}

// NeutralAnalysis returns the defaults used when probes fail or analysis is
// disabled: mid-scale quality, medium engagement, no safety flag.
func NeutralAnalysis() *ContentAnalysis {
	return &ContentAnalysis{
		QualityScore:         5.0,
		EngagementPrediction: EngagementMedium,
		SafetyFlag:           false,
	}
}

// DownloadResult is the outcome of executing a strategy against a URL.
type DownloadResult struct {
	Success      bool           `json:"success"`
	FileRefs     []string       `json:"file_refs,omitempty"`
	Platform     string         `json:"platform"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// ClampConfidence bounds a confidence score to [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
