package problem

import (
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned when no problem exists for an identifier.
var ErrNotFound = errors.New("problem not found")

// Problem is a curated coding exercise with its reference solution.
type Problem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	SolutionCode string    `json:"solution_code"`
	Order        int       `json:"order"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}

// CreateInput holds the author-supplied fields of a new problem.
// Absent fields are stored as empty strings.
type CreateInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	SolutionCode string `json:"solution_code"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	SolutionCode *string `json:"solution_code,omitempty"`
	Order        *int    `json:"order,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.SolutionCode == nil && p.Order == nil
}

// RankUpdate assigns a new order to one problem inside a reorder batch.
type RankUpdate struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// SortByOrder sorts problems by Order. Ties keep their incoming (fetch) order.
func SortByOrder(problems []Problem) {
	sort.SliceStable(problems, func(i, j int) bool {
		return problems[i].Order < problems[j].Order
	})
}

// IDs returns the identifiers of problems in slice order.
func IDs(problems []Problem) []string {
	ids := make([]string, len(problems))
	for i, p := range problems {
		ids[i] = p.ID
	}
	return ids
}
