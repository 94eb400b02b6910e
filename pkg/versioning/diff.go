package versioning

import (
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"

	"ledgerline/policyforge/pkg/assembly"
	"ledgerline/policyforge/pkg/policy"
)

// ChangeKind classifies a clause or content change.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeModified ChangeKind = "modified"
)

// ClauseChange describes one clause that differs between two versions.
type ClauseChange struct {
	Code  string     `json:"code"`
	Title string     `json:"title"`
	Kind  ChangeKind `json:"kind"`

	// Patch is diff-match-patch patch text from the old body to the new one.
	Patch string `json:"patch,omitempty"`

	// Moved is set when the clause's display order changed.
	Moved bool `json:"moved,omitempty"`
}

// ContentChange describes one custom content key that differs.
type ContentChange struct {
	Key  string     `json:"key"`
	Kind ChangeKind `json:"kind"`
	Old  string     `json:"old,omitempty"`
	New  string     `json:"new,omitempty"`
}

// Diff is the difference between two versions.
type Diff struct {
	PolicyID      string          `json:"policy_id"`
	From          int             `json:"from"`
	To            int             `json:"to"`
	Clauses       []ClauseChange  `json:"clauses"`
	CustomContent []ContentChange `json:"custom_content"`
	StatusChanged bool            `json:"status_changed"`
	FromStatus    policy.Status   `json:"from_status"`
	ToStatus      policy.Status   `json:"to_status"`
}

// Empty reports whether the two versions carry identical content and status.
func (d *Diff) Empty() bool {
	return len(d.Clauses) == 0 && len(d.CustomContent) == 0 && !d.StatusChanged
}

// Count returns the number of clause changes of the given kind.
func (d *Diff) Count(kind ChangeKind) int {
	n := 0
	for _, c := range d.Clauses {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Compare diffs version a against version b. Clause changes follow b's
// order, with removed clauses appended in a's order.
func Compare(a, b *policy.Version) *Diff {
	d := &Diff{
		PolicyID:      b.PolicyID,
		From:          a.Number,
		To:            b.Number,
		Clauses:       []ClauseChange{},
		CustomContent: []ContentChange{},
		StatusChanged: a.Status != b.Status,
		FromStatus:    a.Status,
		ToStatus:      b.Status,
	}

	old := indexClauses(a.Clauses)
	dmp := diffmatchpatch.New()

	seen := make(map[string]bool, len(b.Clauses))
	for _, c := range b.Clauses {
		seen[c.Code] = true
		prev, ok := old[c.Code]
		if !ok {
			d.Clauses = append(d.Clauses, ClauseChange{
				Code:  c.Code,
				Title: c.Title,
				Kind:  ChangeAdded,
				Patch: patchText(dmp, "", c.Body),
			})
			continue
		}
		moved := prev.DisplayOrder != c.DisplayOrder
		if prev.Body == c.Body && prev.Title == c.Title && !moved {
			continue
		}
		d.Clauses = append(d.Clauses, ClauseChange{
			Code:  c.Code,
			Title: c.Title,
			Kind:  ChangeModified,
			Patch: patchText(dmp, prev.Body, c.Body),
			Moved: moved,
		})
	}
	for _, c := range a.Clauses {
		if seen[c.Code] {
			continue
		}
		d.Clauses = append(d.Clauses, ClauseChange{
			Code:  c.Code,
			Title: c.Title,
			Kind:  ChangeRemoved,
			Patch: patchText(dmp, c.Body, ""),
		})
	}

	d.CustomContent = compareContent(a.CustomContent, b.CustomContent)
	return d
}

func indexClauses(clauses []assembly.RenderedClause) map[string]assembly.RenderedClause {
	out := make(map[string]assembly.RenderedClause, len(clauses))
	for _, c := range clauses {
		out[c.Code] = c
	}
	return out
}

func patchText(dmp *diffmatchpatch.DiffMatchPatch, before, after string) string {
	if before == after {
		return ""
	}
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(before, diffs))
}

func compareContent(a, b map[string]string) []ContentChange {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	out := []ContentChange{}
	for _, k := range sorted {
		oldVal, inA := a[k]
		newVal, inB := b[k]
		switch {
		case inA && !inB:
			out = append(out, ContentChange{Key: k, Kind: ChangeRemoved, Old: oldVal})
		case !inA && inB:
			out = append(out, ContentChange{Key: k, Kind: ChangeAdded, New: newVal})
		case oldVal != newVal:
			out = append(out, ContentChange{Key: k, Kind: ChangeModified, Old: oldVal, New: newVal})
		}
	}
	return out
}
