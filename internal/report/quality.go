package report

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"expenso/internal/core"
)

var ErrDuplicateID = errors.New("duplicate id")

// Issue is a data-quality warning about one record that was left out of
// the aggregates. Index is the record's position in the input.
type Issue struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (i Issue) String() string {
	if i.ID != "" {
		return fmt.Sprintf("record %d (id %s): %s", i.Index, i.ID, i.Reason)
	}
	return fmt.Sprintf("record %d: %s", i.Index, i.Reason)
}

// Sanitize drops records that would corrupt totals and reports each one.
// Nothing is coerced: a bad amount is excluded, never counted as zero.
func Sanitize(records []core.Expense) ([]core.Expense, []Issue) {
	valid := make([]core.Expense, 0, len(records))
	var issues []Issue
	seen := make(map[string]bool, len(records))
	for i, e := range records {
		if err := e.Validate(); err != nil {
			issues = append(issues, newIssue(i, e.ID, err))
			continue
		}
		if seen[e.ID] {
			issues = append(issues, newIssue(i, e.ID, ErrDuplicateID))
			continue
		}
		seen[e.ID] = true
		valid = append(valid, e)
	}
	return valid, issues
}

// FromRaw validates loosely shaped records, as read from an export file,
// and keeps the ones that pass Sanitize.
func FromRaw(raws []core.RawExpense) ([]core.Expense, []Issue) {
	parsed := make([]core.Expense, 0, len(raws))
	positions := make([]int, 0, len(raws))
	var issues []Issue
	for i, raw := range raws {
		e, err := core.NewExpense(raw)
		if err != nil {
			issues = append(issues, newIssue(i, strings.Trim(string(raw.ID), `"`), err))
			continue
		}
		parsed = append(parsed, e)
		positions = append(positions, i)
	}

	valid, more := Sanitize(parsed)
	for _, is := range more {
		is.Index = positions[is.Index]
		issues = append(issues, is)
	}
	slices.SortStableFunc(issues, func(a, b Issue) int { return cmp.Compare(a.Index, b.Index) })
	return valid, issues
}

func newIssue(index int, id string, err error) Issue {
	return Issue{Index: index, ID: id, Reason: err.Error(), Err: err}
}
