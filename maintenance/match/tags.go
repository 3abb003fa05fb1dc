package match

import (
	"strings"

	"github.com/terrydash/zbxcore/maintenance"
)

// tagsMatch implements spec.md §4.10: a merge-style range scan over
// m.Tags and query.Tags, both pre-sorted by tag name. Grounded on the
// teacher's sorted-key range-scan join style in
// datalog/storage/hash_join_matcher.go and datalog/storage/matcher.go,
// adapted here to walk two slices instead of an iterator/index pair.
//
// Under Or, the maintenance matches if any single MaintenanceTag is
// satisfied by any event tag of the same name. Under AndOr, tags are
// grouped by name; every distinct name present on the maintenance must
// have at least one satisfied criterion (Or within a name group, And
// across name groups).
func tagsMatch(tags []maintenance.MaintenanceTag, query []maintenance.EventTag) map[string]bool {
	satisfied := make(map[string]bool)

	i, j := 0, 0
	for i < len(tags) {
		name := tags[i].Tag
		// Advance j to the first query tag whose name is >= name.
		for j < len(query) && query[j].Tag < name {
			j++
		}
		// Scan the run of query tags sharing this name.
		k := j
		for k < len(query) && query[k].Tag == name {
			if tagValueMatches(tags[i], query[k].Value) {
				satisfied[name] = true
			}
			k++
		}
		if _, seen := satisfied[name]; !seen {
			satisfied[name] = false
		}
		i++
	}

	return satisfied
}

func tagValueMatches(t maintenance.MaintenanceTag, value string) bool {
	switch t.Op {
	case maintenance.Equal:
		return t.Value == value
	case maintenance.Like:
		return strings.Contains(value, t.Value)
	default:
		return false
	}
}

// EventMatchesMaintenanceTags reports whether an event's tags satisfy
// m's tag criteria under m.TagsEvalType (spec.md §4.10). A maintenance
// with no tags always matches.
func EventMatchesMaintenanceTags(m *maintenance.Maintenance, eventTags []maintenance.EventTag) bool {
	if len(m.Tags) == 0 {
		return true
	}

	byName := tagsMatch(m.Tags, eventTags)

	switch m.TagsEvalType {
	case maintenance.Or:
		for _, ok := range byName {
			if ok {
				return true
			}
		}
		return false
	case maintenance.AndOr:
		for _, ok := range byName {
			if !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}
