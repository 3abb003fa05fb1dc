// Package match implements the host and event dispatch of spec.md
// §4.8-§4.10: deciding which running maintenances apply to a host or
// event, and diffing the result against cached state.
package match

import (
	"sort"

	"github.com/terrydash/zbxcore/maintenance"
)

// GroupResolver is the external host-groups subsystem spec.md §6
// describes: nested_group_ids with lazy precaching, plus per-group
// host membership.
type GroupResolver interface {
	// NestedGroupIDs returns the transitive closure of nested group
	// IDs reachable from groupID (including groupID itself).
	NestedGroupIDs(groupID uint64) []uint64
	// GroupHasHost reports whether hostID is a member of groupID.
	GroupHasHost(groupID, hostID uint64) bool
}

// MatchesHost reports whether maintenance m applies to hostID, either
// directly (sorted HostIDs, binary search) or via nested group
// membership (spec.md §4.8).
func MatchesHost(m *maintenance.Maintenance, hostID uint64, groups GroupResolver) bool {
	if containsSorted(m.HostIDs, hostID) {
		return true
	}
	if groups == nil {
		return false
	}
	seen := make(map[uint64]struct{})
	for _, g := range m.GroupIDs {
		for _, nested := range groups.NestedGroupIDs(g) {
			if _, dup := seen[nested]; dup {
				continue
			}
			seen[nested] = struct{}{}
			if groups.GroupHasHost(nested, hostID) {
				return true
			}
		}
	}
	return false
}

func containsSorted(ids []uint64, id uint64) bool {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	return i < len(ids) && ids[i] == id
}

// HostState is the host-side state HostMaintenanceUpdates reads and
// diffs against: the cached fields from the previous tick, plus
// whether the host is a proxy (proxies are never suppressed by
// maintenance, spec.md §4.8).
type HostState struct {
	HostID uint64
	IsProxy bool

	CachedMaintenanceID uint64
	CachedStatus        maintenance.HostMaintenanceStatus
	CachedFrom          int64
	CachedKind          maintenance.Kind
}

// HostMaintenanceUpdates computes, for each non-proxy host, which of
// the given running maintenances (if any) now applies, and returns a
// diff for every host whose state changed (spec.md §4.8).
//
// running must already be filtered to RunState == Running; the first
// matching maintenance in the slice wins, except that a later NoData
// match overrides an earlier Normal match on the same host.
func HostMaintenanceUpdates(running []*maintenance.Maintenance, hosts []HostState, groups GroupResolver) []maintenance.HostMaintenanceDiff {
	var diffs []maintenance.HostMaintenanceDiff

	for _, h := range hosts {
		if h.IsProxy {
			continue
		}

		var winner *maintenance.Maintenance
		for _, m := range running {
			if !MatchesHost(m, h.HostID, groups) {
				continue
			}
			if winner == nil {
				winner = m
				continue
			}
			if winner.Kind == maintenance.Normal && m.Kind == maintenance.NoData {
				winner = m
			}
		}

		diff := maintenance.HostMaintenanceDiff{HostID: h.HostID}
		var newID uint64
		var newStatus maintenance.HostMaintenanceStatus
		var newFrom int64
		var newKind maintenance.Kind
		if winner != nil {
			newID = winner.ID
			newStatus = maintenance.StatusOn
			newFrom = winner.RunningSince
			newKind = winner.Kind
		} else {
			newStatus = maintenance.StatusOff
			newKind = maintenance.Normal
		}

		var flags maintenance.DiffFlags
		if newID != h.CachedMaintenanceID {
			flags |= maintenance.DiffMaintenanceID
		}
		if newStatus != h.CachedStatus {
			flags |= maintenance.DiffStatus
		}
		if newFrom != h.CachedFrom {
			flags |= maintenance.DiffFrom
		}
		if newKind != h.CachedKind {
			flags |= maintenance.DiffKind
		}
		if flags == 0 {
			continue
		}

		diff.Flags = flags
		diff.MaintenanceID = newID
		diff.MaintenanceStatus = newStatus
		diff.MaintenanceFrom = newFrom
		diff.MaintenanceKind = newKind
		diffs = append(diffs, diff)
	}

	return diffs
}

// HostStateStore is the write-side of the host cache: applying a diff
// mutates the cached fields the next HostMaintenanceUpdates call will
// diff against.
type HostStateStore interface {
	ApplyHostMaintenanceDiff(d maintenance.HostMaintenanceDiff)
}

// FlushHostMaintenanceUpdates applies each diff to the store under
// the caller's write lock (spec.md §4.8). Only fields marked in
// Flags are meaningful; the store is responsible for leaving
// unflagged fields untouched.
func FlushHostMaintenanceUpdates(store HostStateStore, diffs []maintenance.HostMaintenanceDiff) {
	for _, d := range diffs {
		store.ApplyHostMaintenanceDiff(d)
	}
}
