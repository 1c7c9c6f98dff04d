package models

import (
	"errors"
	"time"
)

// ErrNoDocument is returned when a session has no research document yet.
var ErrNoDocument = errors.New("no document")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a session's conversation log.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ResolvedPlan is the output of query resolution. When Shortcut is set the
// plan is terminal and SubQueries is empty.
type ResolvedPlan struct {
	ResolvedQuery string    `json:"resolved_query"`
	Intent        string    `json:"intent"`
	SubQueries    []string  `json:"sub_queries"`
	Shortcut      *Shortcut `json:"shortcut,omitempty"`
}

// Terminal reports whether the plan bypasses retrieval and synthesis.
func (p ResolvedPlan) Terminal() bool { return p.Shortcut != nil }

// ShortcutKind separates canned matches from edge-case classifications.
type ShortcutKind string

const (
	ShortcutCanned   ShortcutKind = "canned"
	ShortcutEdgeCase ShortcutKind = "edge_case"
)

// Shortcut carries the fixed response of a short-circuited turn.
type Shortcut struct {
	Kind     ShortcutKind `json:"kind"`
	Tag      string       `json:"tag"`
	Response Answer       `json:"response"`
}

// SearchHit is one deduplicated result of a retrieval batch.
type SearchHit struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Snippet       string   `json:"snippet"`
	Content       string   `json:"content"`
	Query         string   `json:"query"`
	RelevanceHint *float64 `json:"relevance_hint,omitempty"`
}

// EvidenceItem is a SearchHit that survived relevance filtering.
type EvidenceItem struct {
	SearchHit
	SourceID       int      `json:"source_id"`
	RelevanceScore float64  `json:"relevance_score"`
	// Scored is set once RelevanceScore was assigned, so a genuine 0 is kept.
	Scored         bool     `json:"scored"`
	KeyFacts       []string `json:"key_facts"`
	MainTopics     []string `json:"main_topics,omitempty"`
	Summary        string   `json:"summary"`
}

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Source is a cited evidence item as returned to callers.
type Source struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

// Answer is the final product of a turn.
type Answer struct {
	Answer     string     `json:"answer"`
	KeyPoints  []string   `json:"key_points"`
	Confidence Confidence `json:"confidence"`
	Sources    []Source   `json:"sources"`
}

// Topic is one entry of a session's research document.
type Topic struct {
	Topic     string    `json:"topic"`
	Query     string    `json:"query"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is the per-session topic log.
type Document struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Topics    []Topic   `json:"topics"`
}

// UpdatedAt returns the latest topic update, or the creation time when empty.
func (d Document) UpdatedAt() time.Time {
	latest := d.CreatedAt
	for _, t := range d.Topics {
		if t.UpdatedAt.After(latest) {
			latest = t.UpdatedAt
		}
	}
	return latest
}

// DocumentEntry is one answered turn handed to document export.
type DocumentEntry struct {
	SessionID string
	Query     string
	Answer    string
	Sources   []Source
	DeepDive  bool
}
