package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/internal/llm"
)

// LabelStatus tags the outcome for one company in a model response
type LabelStatus int

const (
	// LabelOK: the model returned a taxonomy label or Others
	LabelOK LabelStatus = iota
	// LabelInvalid: the model returned something outside the taxonomy
	LabelInvalid
	// LabelMissing: the company is absent from the response
	LabelMissing
)

func (s LabelStatus) String() string {
	switch s {
	case LabelOK:
		return "ok"
	case LabelInvalid:
		return "invalid"
	case LabelMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Label is the tagged classification result for one company
type Label struct {
	Company  string
	Category string // assignable label; empty unless Status is LabelOK
	Raw      string // label as returned by the model
	Status   LabelStatus
}

// Resolved returns the category to store when invalid labels fall back to Others
func (l Label) Resolved() string {
	if l.Status == LabelOK {
		return l.Category
	}
	return contracts.CategoryOthers
}

type labelItem struct {
	Company  string `json:"company" validate:"required"`
	Category string `json:"category" validate:"required"`
}

// parseResponse decodes the model output into items. A failed decode is
// retried once on the trimmed, bracket-extracted text.
func parseResponse(raw string) ([]labelItem, error) {
	cleaned := llm.StripCodeFence(raw)

	var items []labelItem
	if err := json.Unmarshal([]byte(cleaned), &items); err == nil {
		return items, nil
	}

	retry := llm.ExtractJSON(strings.TrimSpace(cleaned), '[')
	items = nil
	if err := json.Unmarshal([]byte(retry), &items); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	return items, nil
}

// tagLabels matches parsed items back to the requested companies
func tagLabels(names []string, items []labelItem, validate *validator.Validate) []Label {
	byCompany := make(map[string]labelItem, len(items))
	for _, item := range items {
		item.Company = strings.TrimSpace(item.Company)
		item.Category = strings.TrimSpace(item.Category)
		if err := validate.Struct(item); err != nil {
			continue
		}
		if _, dup := byCompany[item.Company]; !dup {
			byCompany[item.Company] = item
		}
	}

	labels := make([]Label, 0, len(names))
	for _, name := range names {
		item, ok := byCompany[strings.TrimSpace(name)]
		if !ok {
			item, ok = lookupFold(byCompany, name)
		}

		switch {
		case !ok:
			labels = append(labels, Label{Company: name, Status: LabelMissing})
		case contracts.IsAssignable(item.Category):
			labels = append(labels, Label{Company: name, Category: item.Category, Raw: item.Category, Status: LabelOK})
		default:
			labels = append(labels, Label{Company: name, Raw: item.Category, Status: LabelInvalid})
		}
	}
	return labels
}

func lookupFold(byCompany map[string]labelItem, name string) (labelItem, bool) {
	name = strings.TrimSpace(name)
	for company, item := range byCompany {
		if strings.EqualFold(company, name) {
			return item, true
		}
	}
	return labelItem{}, false
}

func buildPrompt(names []string) string {
	var b strings.Builder

	b.WriteString("You are an API that only returns JSON. Classify each company below into exactly one sector.\n")
	fmt.Fprintf(&b, "Allowed categories: %s, %s.\n", strings.Join(contracts.Taxonomy, ", "), contracts.CategoryOthers)
	fmt.Fprintf(&b, "Use %q when no sector fits. Do not invent new categories.\n", contracts.CategoryOthers)
	fmt.Fprintf(&b, "Return a JSON array with exactly %d objects of the form ", len(names))
	b.WriteString(`{"company": "<name exactly as given>", "category": "<category>"}`)
	b.WriteString(" and nothing else.\n\nCompanies:\n")

	for i, name := range names {
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}
	return b.String()
}
