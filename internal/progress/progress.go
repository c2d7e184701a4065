// Package progress computes milestone completion percentages.
package progress

import (
	"encoding/json"
	"math"
	"strings"

	"gigmarket/internal/model"
)

// SubmittedCap is the highest progress a milestone can reach before approval.
const SubmittedCap = 90

// ParseNotes decodes stored submission notes. Notes written before they were
// structured are plain text and come back as Text with no deliverables.
// ok is false when raw is empty.
func ParseNotes(raw *string) (notes model.SubmissionNotes, ok bool) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return model.SubmissionNotes{}, false
	}
	if err := json.Unmarshal([]byte(*raw), &notes); err != nil {
		return model.SubmissionNotes{Text: *raw}, true
	}
	return notes, true
}

// Compute returns 0..100 for a milestone.
//
//   - approved is always 100
//   - open with no notes is 0
//   - otherwise, with N template deliverables, each one whose name appears in
//     the notes with at least one file counts; the result is round(k/N*90)
//   - with no template deliverables a submitted milestone is 90, anything else 0
func Compute(status string, rawNotes *string, template *model.MilestoneTemplate) int {
	if status == model.MilestoneStatusApproved {
		return 100
	}

	notes, hasNotes := ParseNotes(rawNotes)
	submitted := status == model.MilestoneStatusSubmitted
	if !submitted && !hasNotes {
		return 0
	}

	var expected []model.DeliverableTemplate
	if template != nil {
		expected = template.Deliverables
	}
	if len(expected) == 0 {
		if submitted {
			return SubmittedCap
		}
		return 0
	}

	withFiles := make(map[string]bool, len(notes.Deliverables))
	for _, d := range notes.Deliverables {
		if hasFile(d.Files) {
			withFiles[key(d.Name)] = true
		}
	}

	count := 0
	for _, d := range expected {
		if withFiles[key(d.Name)] {
			count++
		}
	}
	return int(math.Round(float64(count) / float64(len(expected)) * SubmittedCap))
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func hasFile(files []string) bool {
	for _, f := range files {
		if strings.TrimSpace(f) != "" {
			return true
		}
	}
	return false
}
