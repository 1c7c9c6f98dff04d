// Package planner validates the structured JSON documents produced by the
// completion provider: query plans from the resolver and per-source analyses
// from the relevance filter.
package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed resolved_plan.json
var planSchemaJSON string

//go:embed evidence_analysis.json
var analysisSchemaJSON string

// PlanDocument is the resolver's JSON contract.
type PlanDocument struct {
	ResolvedQuery string   `json:"resolved_query"`
	Intent        string   `json:"intent,omitempty"`
	SubQueries    []string `json:"sub_queries"`
}

// AnalysisDocument is the relevance filter's JSON contract.
type AnalysisDocument struct {
	RelevanceScore float64  `json:"relevance_score"`
	KeyFacts       []string `json:"key_facts,omitempty"`
	MainTopics     []string `json:"main_topics,omitempty"`
	Summary        string   `json:"summary,omitempty"`
}

type compiled struct {
	once   sync.Once
	name   string
	source *string
	schema *jsonschema.Schema
	err    error
}

var (
	planSchema     = &compiled{name: "resolved_plan.json", source: &planSchemaJSON}
	analysisSchema = &compiled{name: "evidence_analysis.json", source: &analysisSchemaJSON}
)

func (c *compiled) get() (*jsonschema.Schema, error) {
	c.once.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(c.name, strings.NewReader(*c.source)); err != nil {
			c.err = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile(c.name)
		if err != nil {
			c.err = fmt.Errorf("compile %s: %w", c.name, err)
			return
		}
		c.schema = schema
	})
	return c.schema, c.err
}

func validate(c *compiled, data []byte, out any) error {
	schema, err := c.get()
	if err != nil {
		return err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("does not match %s: %w", c.name, err)
	}
	return json.Unmarshal(data, out)
}

// ParsePlanDocument validates data against the plan schema and decodes it.
func ParsePlanDocument(data []byte) (PlanDocument, error) {
	var doc PlanDocument
	if err := validate(planSchema, data, &doc); err != nil {
		return PlanDocument{}, fmt.Errorf("plan: %w", err)
	}
	return doc, nil
}

// ParseAnalysisDocument validates data against the analysis schema and decodes it.
func ParseAnalysisDocument(data []byte) (AnalysisDocument, error) {
	var doc AnalysisDocument
	if err := validate(analysisSchema, data, &doc); err != nil {
		return AnalysisDocument{}, fmt.Errorf("analysis: %w", err)
	}
	return doc, nil
}
