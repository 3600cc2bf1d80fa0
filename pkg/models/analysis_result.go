package models

import "time"

// AnalysisResult is the output of a full analysis run.
// RentalPriceAnalysis is nil when price context was skipped.
type AnalysisResult struct {
	Metadata            LeaseMetadata       `json:"metadata"`
	Summary             string              `json:"summary"`
	ProblematicClauses  []ProblematicClause `json:"problematic_clauses"`
	RentalPriceAnalysis *string             `json:"rental_price_analysis,omitempty"`
	RewriteSuggestions  []RewriteSuggestion `json:"rewrite_suggestions"`
	TenantRights        string              `json:"tenant_rights"`
	CompletedAt         time.Time           `json:"completed_at"`
}
