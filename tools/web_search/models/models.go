package models

// Depth is the provider search depth ("basic" or "advanced").
type Depth string

const (
	DepthBasic    Depth = "basic"
	DepthAdvanced Depth = "advanced"
)

// Result is one provider hit. Score is nil when the provider does not rank.
type Result struct {
	URL     string   `json:"url"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Score   *float64 `json:"score,omitempty"`
}
