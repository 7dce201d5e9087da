package reason

import (
	"sort"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
)

// Classification is the evidentiary status of a question. It is an
// ordinary value: UNKNOWN and INCONCLUSIVE are successful terminal
// answers, not errors.
type Classification string

const (
	// StatusAnswerable means every required predicate has evidence and
	// no single-valued predicate carries disagreeing facts.
	StatusAnswerable Classification = "ANSWERABLE"
	// StatusUnknown means at least one required predicate has zero facts.
	StatusUnknown Classification = "UNKNOWN"
	// StatusInconclusive means some subject carries disagreeing facts
	// for the same single-valued predicate.
	StatusInconclusive Classification = "INCONCLUSIVE"
)

// Conflict groups the facts of one (subject, predicate) pair that
// disagree on value, with all their sources.
type Conflict struct {
	Subject   string    `json:"subject"`
	Predicate string    `json:"predicate"`
	Facts     []kg.Fact `json:"facts"`
}

// Evaluation is the outcome of classifying a retrieved fact set.
type Evaluation struct {
	Status    Classification
	Missing   []string
	Conflicts []Conflict
}

// Classify determines the evidentiary status of facts against the
// required predicates of the template that produced them. Completeness
// is evaluated first: any required predicate with zero facts yields
// UNKNOWN immediately and conflicts elsewhere are not examined. Then
// every (subject, predicate) group of a single-valued predicate is
// checked for disagreement; any yields INCONCLUSIVE with the conflicting
// facts. Otherwise the set is ANSWERABLE.
//
// multivalued reports whether a predicate legitimately holds a set of
// values (so disagreement is not a conflict); nil treats every
// predicate as single-valued. The result depends only on the fact set,
// not on its order.
func Classify(required []string, facts []kg.Fact, multivalued func(predicate string) bool) Evaluation {
	if len(facts) == 0 {
		return Evaluation{
			Status:  StatusUnknown,
			Missing: append([]string(nil), required...),
		}
	}

	present := make(map[string]bool, len(facts))
	for _, f := range facts {
		present[f.Predicate] = true
	}

	var missing []string
	for _, p := range required {
		if !present[p] {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return Evaluation{Status: StatusUnknown, Missing: missing}
	}

	type groupKey struct {
		subject   string
		predicate string
	}
	groups := make(map[groupKey][]kg.Fact)
	for _, f := range facts {
		if multivalued != nil && multivalued(f.Predicate) {
			continue
		}
		k := groupKey{subject: f.Subject, predicate: f.Predicate}
		groups[k] = append(groups[k], f)
	}

	var conflicts []Conflict
	for k, group := range groups {
		if len(group) < 2 {
			continue
		}
		distinct := make(map[kg.Value]bool, len(group))
		for _, f := range group {
			distinct[f.Value] = true
		}
		if len(distinct) < 2 {
			continue
		}

		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Value.Kind != group[j].Value.Kind {
				return group[i].Value.Kind < group[j].Value.Kind
			}
			return group[i].Value.Text < group[j].Value.Text
		})
		conflicts = append(conflicts, Conflict{
			Subject:   k.subject,
			Predicate: k.predicate,
			Facts:     group,
		})
	}
	if len(conflicts) > 0 {
		sort.Slice(conflicts, func(i, j int) bool {
			if conflicts[i].Subject != conflicts[j].Subject {
				return conflicts[i].Subject < conflicts[j].Subject
			}
			return conflicts[i].Predicate < conflicts[j].Predicate
		})
		return Evaluation{Status: StatusInconclusive, Conflicts: conflicts}
	}

	return Evaluation{Status: StatusAnswerable}
}
