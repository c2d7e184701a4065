// Package definition reads the scope and milestone plan that clients embed in
// a project description, and writes it back in the same form.
//
// The embedded form is:
//
//	<summary>
//	[SCOPE]
//	<scope text>
//	[MILESTONES]
//	[{"title":"Draft","due":"10/01/2025","deliverables":[{"name":"Wireframe","required":true}]}]
package definition

import (
	"encoding/json"
	"strings"
	"time"

	"gigmarket/internal/model"
)

const (
	ScopeMarker      = "[SCOPE]"
	MilestonesMarker = "[MILESTONES]"

	isoDate = "2006-01-02"
)

// usDateLayouts accept both zero-padded and bare month/day.
var usDateLayouts = []string{"1/2/2006", "1-2-2006"}

type Definition struct {
	Summary    string
	Scope      string
	Milestones []model.MilestoneTemplate
}

type rawTemplate struct {
	Title        string `json:"title"`
	Due          string `json:"due"`
	Deliverables []struct {
		Name     string `json:"name"`
		Required bool   `json:"required"`
	} `json:"deliverables"`
}

// Parse splits description into summary, scope and milestone templates.
// A malformed milestone block yields no templates; it is never an error.
func Parse(description string) Definition {
	scopeAt := strings.Index(description, ScopeMarker)
	milestonesAt := strings.Index(description, MilestonesMarker)

	summaryEnd := len(description)
	for _, at := range []int{scopeAt, milestonesAt} {
		if at >= 0 && at < summaryEnd {
			summaryEnd = at
		}
	}

	def := Definition{Summary: strings.TrimSpace(description[:summaryEnd])}
	if scopeAt >= 0 {
		def.Scope = strings.TrimSpace(section(description, scopeAt+len(ScopeMarker), milestonesAt))
	}
	if milestonesAt >= 0 {
		def.Milestones = ParseTemplates(section(description, milestonesAt+len(MilestonesMarker), scopeAt))
	}
	return def
}

// section returns description[start:] cut at next if next lies after start.
func section(description string, start, next int) string {
	if next >= start {
		return description[start:next]
	}
	return description[start:]
}

// ParseTemplates decodes a JSON milestone list, normalizing due dates and
// dropping untitled entries.
func ParseTemplates(raw string) []model.MilestoneTemplate {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var items []rawTemplate
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}

	templates := make([]model.MilestoneTemplate, 0, len(items))
	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		due, ok := NormalizeDate(item.Due)
		if !ok {
			due = strings.TrimSpace(item.Due)
		}
		tmpl := model.MilestoneTemplate{Title: title, Due: due}
		for _, d := range item.Deliverables {
			name := strings.TrimSpace(d.Name)
			if name == "" {
				continue
			}
			tmpl.Deliverables = append(tmpl.Deliverables, model.DeliverableTemplate{Name: name, Required: d.Required})
		}
		templates = append(templates, tmpl)
	}
	return templates
}

// NormalizeDate converts MM/DD/YYYY (or an ISO date or timestamp) to
// YYYY-MM-DD. ok is false when s is not a recognizable date.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if t, err := time.Parse(isoDate, s); err == nil {
		return t.Format(isoDate), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(isoDate), true
	}
	for _, layout := range usDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoDate), true
		}
	}
	return "", false
}

// Normalize returns templates with due dates normalized and untitled
// entries dropped. Unparseable due dates are kept verbatim.
func Normalize(templates []model.MilestoneTemplate) []model.MilestoneTemplate {
	out := make([]model.MilestoneTemplate, 0, len(templates))
	for _, t := range templates {
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" {
			continue
		}
		if due, ok := NormalizeDate(t.Due); ok {
			t.Due = due
		}
		out = append(out, t)
	}
	return out
}

// Compose renders the embedded description form. Empty parts are omitted.
func Compose(summary, scope string, milestones []model.MilestoneTemplate) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(summary))
	if scope = strings.TrimSpace(scope); scope != "" {
		b.WriteString("\n\n" + ScopeMarker + "\n")
		b.WriteString(scope)
	}
	if len(milestones) > 0 {
		encoded, err := json.Marshal(milestones)
		if err == nil {
			b.WriteString("\n\n" + MilestonesMarker + "\n")
			b.Write(encoded)
		}
	}
	return b.String()
}

// Resolve returns the project's structured definition, falling back to
// parsing the description for rows created before scope and templates
// were stored separately.
func Resolve(p *model.Project) Definition {
	if p.Scope != nil || len(p.MilestoneTemplates) > 0 {
		def := Definition{Summary: p.Description, Milestones: p.MilestoneTemplates}
		if p.Scope != nil {
			def.Scope = *p.Scope
		}
		return def
	}
	return Parse(p.Description)
}

// Find returns the template for a milestone. An exact title and due match
// wins over a title-only match; titles compare case-insensitively.
func (d Definition) Find(title, due string) (model.MilestoneTemplate, bool) {
	return FindTemplate(d.Milestones, title, due)
}

func FindTemplate(templates []model.MilestoneTemplate, title, due string) (model.MilestoneTemplate, bool) {
	title = strings.TrimSpace(title)
	var fallback *model.MilestoneTemplate
	for i := range templates {
		t := &templates[i]
		if !strings.EqualFold(t.Title, title) {
			continue
		}
		if t.Due == due {
			return *t, true
		}
		if fallback == nil {
			fallback = t
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return model.MilestoneTemplate{}, false
}
