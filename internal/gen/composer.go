package gen

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"fieldbook/internal/domain"
)

// Composer builds derived sections straight from catalog data. Its output is
// a pure function of the district and product rows, which is why sections it
// backs are not independently regenerable.
type Composer struct{}

func (Composer) Generate(_ context.Context, req Request) (string, error) {
	switch req.SectionType {
	case domain.SectionDistrictData:
		return composeDistrictData(req.District), nil
	case domain.SectionFitAssessment:
		return composeFitAssessment(req.District, req.Products), nil
	default:
		return "", fmt.Errorf("composer cannot build section type %s", req.SectionType)
	}
}

func composeDistrictData(d domain.District) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", d.Name)
	if d.State != "" {
		fmt.Fprintf(&b, "- State: %s\n", d.State)
	}
	if d.Enrollment > 0 {
		fmt.Fprintf(&b, "- Enrollment: %d students (%s)\n", d.Enrollment, enrollmentBand(d.Enrollment))
	}
	for _, line := range jsonLines("Budget", d.BudgetJSON) {
		b.WriteString(line)
	}
	for _, line := range jsonLines("Priority", d.PrioritiesJSON) {
		b.WriteString(line)
	}
	return strings.TrimRight(b.String(), "\n")
}

func composeFitAssessment(d domain.District, products []domain.Product) string {
	priorities := strings.ToLower(d.PrioritiesJSON)
	var b strings.Builder
	b.WriteString("## Fit Assessment\n\n")
	for _, p := range products {
		score, reasons := scoreProduct(p, priorities, d.Enrollment)
		fmt.Fprintf(&b, "### %s — %s fit\n", p.Name, score)
		for _, r := range reasons {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func scoreProduct(p domain.Product, priorities string, enrollment int) (string, []string) {
	points := 0
	var reasons []string
	for _, term := range strings.Fields(strings.ToLower(p.Category + " " + p.Name)) {
		term = strings.Trim(term, ",.;:")
		if len(term) >= 4 && strings.Contains(priorities, term) {
			points++
			reasons = append(reasons, fmt.Sprintf("District priorities mention %q.", term))
		}
	}
	switch band := enrollmentBand(enrollment); band {
	case "large", "very large":
		points++
		reasons = append(reasons, fmt.Sprintf("A %s district supports district-wide licensing.", band))
	case "small":
		reasons = append(reasons, "Small district; expect a site-level rather than district-wide purchase.")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "No direct overlap with stated priorities; lead with outcomes data.")
	}
	switch {
	case points >= 3:
		return "strong", reasons
	case points >= 1:
		return "moderate", reasons
	default:
		return "weak", reasons
	}
}

func enrollmentBand(n int) string {
	switch {
	case n >= 50000:
		return "very large"
	case n >= 15000:
		return "large"
	case n >= 2500:
		return "medium"
	case n > 0:
		return "small"
	default:
		return "unknown"
	}
}

// jsonLines renders a JSON object or array field as markdown bullet lines,
// falling back to the raw string for non-JSON values.
func jsonLines(label, raw string) []string {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			out = append(out, fmt.Sprintf("- %s %s: %v\n", label, k, obj[k]))
		}
		return out
	}
	var arr []any
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		var out []string
		for _, v := range arr {
			out = append(out, fmt.Sprintf("- %s: %v\n", label, v))
		}
		return out
	}
	return []string{fmt.Sprintf("- %s: %s\n", label, raw)}
}
