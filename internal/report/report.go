// Package report renders analysis results as plain text.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/kiranshivaraju/leaselens/pkg/models"
)

const (
	na           = "N/A"
	width        = 80
	previewRunes = 150
)

var (
	heavyRule = strings.Repeat("=", width)
	lightRule = strings.Repeat("-", width)
)

// Format renders a full analysis as a fixed-layout report. It never fails;
// missing values print as N/A and a nil result renders the empty skeleton.
// The output depends only on r.
func Format(r *models.AnalysisResult) string {
	if r == nil {
		r = &models.AnalysisResult{}
	}
	var b strings.Builder

	b.WriteString(heavyRule + "\n")
	b.WriteString("LEASE ANALYSIS REPORT\n")
	b.WriteString(heavyRule + "\n\n")

	md := r.Metadata
	section(&b, "📍 PROPERTY INFORMATION")
	fmt.Fprintf(&b, "Address: %s\n", str(md.PropertyAddress))
	fmt.Fprintf(&b, "City: %s, %s %s\n", str(md.City), str(md.State), str(md.ZipCode))
	fmt.Fprintf(&b, "Monthly Rent: %s\n", money(md.MonthlyRent))
	fmt.Fprintf(&b, "Security Deposit: %s\n", money(md.SecurityDeposit))
	fmt.Fprintf(&b, "Lease Term: %s to %s\n", str(md.LeaseStartDate), str(md.LeaseEndDate))
	fmt.Fprintf(&b, "Bedrooms: %s, Bathrooms: %s\n", num(md.NumberOfBedrooms), num(md.NumberOfBathrooms))
	b.WriteString("\n")

	section(&b, "📋 LEASE SUMMARY")
	b.WriteString(text(r.Summary) + "\n\n")

	section(&b, "🚨 PROBLEMATIC CLAUSES IDENTIFIED")
	if len(r.ProblematicClauses) == 0 {
		b.WriteString("No significant issues identified.\n")
	}
	for i, c := range r.ProblematicClauses {
		fmt.Fprintf(&b, "\n%d. [%s]%s\n", i+1, strings.ToUpper(string(severity(c.Severity))), illegalTag(c))
		fmt.Fprintf(&b, "   Clause: %s\n", text(c.Clause))
		fmt.Fprintf(&b, "   Issue: %s\n", text(c.Issue))
		fmt.Fprintf(&b, "   Recommendation: %s\n", text(c.Recommendation))
	}
	b.WriteString("\n")

	if r.RentalPriceAnalysis != nil {
		section(&b, "💰 RENTAL PRICE ANALYSIS")
		b.WriteString(text(*r.RentalPriceAnalysis) + "\n\n")
	}

	section(&b, "✏️ SUGGESTED LEASE REWRITES")
	if len(r.RewriteSuggestions) == 0 {
		b.WriteString("No rewrites suggested.\n")
	}
	for i, rw := range r.RewriteSuggestions {
		fmt.Fprintf(&b, "\n%d. %s Severity Issue\n", i+1, severity(rw.Severity))
		fmt.Fprintf(&b, "   Original Clause: %s\n", text(rw.OriginalClause))
		b.WriteString("   Suggested Changes:\n")
		fmt.Fprintf(&b, "   %s\n", text(rw.Suggestion))
	}
	b.WriteString("\n")

	section(&b, "⚖️ YOUR TENANT RIGHTS")
	b.WriteString(text(r.TenantRights) + "\n\n")

	b.WriteString(heavyRule + "\n")
	b.WriteString("END OF REPORT\n")
	b.WriteString(heavyRule + "\n")
	return b.String()
}

// FormatIssues renders a short issue list with clause previews.
func FormatIssues(clauses []models.ProblematicClause) string {
	if len(clauses) == 0 {
		return "No problematic clauses identified."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d potential issues:\n\n", len(clauses))
	for i, c := range clauses {
		fmt.Fprintf(&b, "%d. [%s]%s\n", i+1, severity(c.Severity), illegalTag(c))
		fmt.Fprintf(&b, "   Clause: %s\n", preview(c.Clause))
		fmt.Fprintf(&b, "   Issue: %s\n", c.Issue)
		fmt.Fprintf(&b, "   Recommendation: %s\n\n", c.Recommendation)
	}
	return b.String()
}

// FormatRewrites renders rewrite suggestions with clause previews.
func FormatRewrites(rewrites []models.RewriteSuggestion) string {
	if len(rewrites) == 0 {
		return "No significant issues found that require rewriting."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Suggested rewrites for %d clauses:\n\n", len(rewrites))
	for i, rw := range rewrites {
		fmt.Fprintf(&b, "%d. %s Severity Issue\n", i+1, severity(rw.Severity))
		fmt.Fprintf(&b, "   Original: %s\n", preview(rw.OriginalClause))
		fmt.Fprintf(&b, "   %s\n\n", rw.Suggestion)
	}
	return b.String()
}

// FileName is the name the CLI saves a report under, e.g. lease_analysis_20240131_154500.txt.
func FileName(t time.Time) string {
	return "lease_analysis_" + t.Format("20060102_150405") + ".txt"
}

func section(b *strings.Builder, title string) {
	b.WriteString(title + "\n")
	b.WriteString(lightRule + "\n")
}

func illegalTag(c models.ProblematicClause) string {
	if c.PotentiallyIllegal {
		return " ⚠️ POTENTIALLY ILLEGAL"
	}
	return ""
}

func severity(s models.Severity) models.Severity {
	if s == "" {
		return models.SeverityUnknown
	}
	return s
}

func str(p *string) string {
	return text(models.StringValue(p))
}

func text(s string) string {
	if strings.TrimSpace(s) == "" {
		return na
	}
	return s
}

func num(p *float64) string {
	if p == nil {
		return na
	}
	return models.FormatNumber(*p)
}

func money(p *float64) string {
	if p == nil {
		return na
	}
	return "$" + models.FormatNumber(*p)
}

// preview cuts s to its first 150 runes, marking the cut with "...".
func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes]) + "..."
}
