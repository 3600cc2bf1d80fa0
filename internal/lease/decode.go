package lease

import (
	"math"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/leaselens/pkg/models"
)

// MetadataFromObject converts a decoded extract-metadata response into
// LeaseMetadata. Values are coerced leniently: numbers given as strings
// ("$2,500") are parsed, numeric ZIP codes become strings, and anything
// unusable is treated as absent.
func MetadataFromObject(obj map[string]any) *models.LeaseMetadata {
	m := &models.LeaseMetadata{
		PropertyAddress:   stringField(obj, "property_address"),
		City:              stringField(obj, "city"),
		State:             stringField(obj, "state"),
		ZipCode:           stringField(obj, "zip_code"),
		MonthlyRent:       numberField(obj, "monthly_rent"),
		SecurityDeposit:   numberField(obj, "security_deposit"),
		LeaseStartDate:    stringField(obj, "lease_start_date"),
		LeaseEndDate:      stringField(obj, "lease_end_date"),
		LandlordName:      stringField(obj, "landlord_name"),
		NumberOfBedrooms:  numberField(obj, "number_of_bedrooms"),
		NumberOfBathrooms: numberField(obj, "number_of_bathrooms"),
	}
	if s := stringField(obj, "error"); s != nil {
		m.Error = *s
		if raw, ok := obj["raw_response"].(string); ok {
			m.RawResponse = raw
		}
	}
	return m
}

// ClausesFromArray converts a decoded identify-issues response into clauses,
// preserving order.
func ClausesFromArray(items []map[string]any) []models.ProblematicClause {
	out := make([]models.ProblematicClause, 0, len(items))
	for _, item := range items {
		out = append(out, models.ProblematicClause{
			Clause:             models.StringValue(stringField(item, "clause")),
			Issue:              models.StringValue(stringField(item, "issue")),
			Severity:           models.ParseSeverity(models.StringValue(stringField(item, "severity"))),
			PotentiallyIllegal: boolField(item, "potentially_illegal"),
			Recommendation:     models.StringValue(stringField(item, "recommendation")),
		})
	}
	return out
}

func stringField(obj map[string]any, key string) *string {
	switch v := obj[key].(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" || strings.EqualFold(s, "null") {
			return nil
		}
		return &s
	case float64:
		s := models.FormatNumber(v)
		return &s
	case bool:
		s := strconv.FormatBool(v)
		return &s
	default:
		return nil
	}
}

// numberField drops NaN and infinities, which ParseFloat accepts but JSON
// cannot encode.
func numberField(obj map[string]any, key string) *float64 {
	switch v := obj[key].(type) {
	case float64:
		return &v
	case string:
		cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(v))
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func boolField(obj map[string]any, key string) bool {
	switch v := obj[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes":
			return true
		}
	}
	return false
}
