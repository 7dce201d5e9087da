package retrieve

import (
	"sort"
	"strings"
	"unicode"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/kg"
)

// aliasEntry maps one normalized surface form to the entity it names.
type aliasEntry struct {
	alias string
	id    string
	kind  string
}

// buildAliasIndex derives the surface forms an entity can be mentioned
// by: its id, its name attribute, and the trailing id segment. Longer
// aliases sort first so the most specific mention wins.
func buildAliasIndex(g *kg.Graph) []aliasEntry {
	var entries []aliasEntry
	for _, entity := range g.Entities() {
		seen := make(map[string]struct{})
		add := func(raw string) {
			alias := normalizeText(raw)
			if len(alias) < 2 {
				return
			}
			if _, dup := seen[alias]; dup {
				return
			}
			seen[alias] = struct{}{}
			entries = append(entries, aliasEntry{alias: alias, id: entity.ID, kind: entity.Kind})
		}

		add(entity.ID)
		for r := range g.Match(kg.Pattern{Subject: kg.Term(entity.ID), Predicate: kg.Term("name")}) {
			add(r.Object.Text)
		}
		if i := strings.LastIndex(entity.ID, "_"); i >= 0 {
			add(entity.ID[i+1:])
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].alias) > len(entries[j].alias)
	})
	return entries
}

// entityHit is one entity detected in a question.
type entityHit struct {
	id   string
	kind string
}

// scanEntities returns the entities mentioned in the question, most
// specific mention first. Each entity appears at most once.
func scanEntities(index []aliasEntry, question string) []entityHit {
	padded := " " + normalizeText(question) + " "

	var hits []entityHit
	matched := make(map[string]struct{})
	for _, entry := range index {
		if _, dup := matched[entry.id]; dup {
			continue
		}
		if !strings.Contains(padded, " "+entry.alias+" ") {
			continue
		}
		matched[entry.id] = struct{}{}
		hits = append(hits, entityHit{id: entry.id, kind: entry.kind})
	}
	return hits
}

// normalizeText lowercases s and reduces every run of non-alphanumeric
// characters to a single space.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}
