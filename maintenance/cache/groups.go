package cache

import (
	"fmt"
	"sync"

	"github.com/terrydash/zbxcore/internal/hashset"
)

// GroupHierarchy is the external host-groups subsystem's parent/child
// adjacency, supplied by the surrounding server (spec.md §6). ChildGroups
// returns the groups directly nested under groupID.
type GroupHierarchy interface {
	ChildGroups(groupID uint64) []uint64
}

// GroupCache lazily precaches the transitive nested-group closure for
// group IDs named on a maintenance's GroupIDs, and tracks per-group
// host membership, satisfying match.GroupResolver. It is the
// "host-groups nested-membership cache" named in the domain stack:
// host membership uses the sharded internal/hashset default so
// concurrent matcher reads never contend on one global map.
type GroupCache struct {
	hierarchy   GroupHierarchy
	hostMembers *hashset.Set[struct{}]

	mu      sync.RWMutex
	closure map[uint64][]uint64
}

// NewGroupCache returns a GroupCache resolving nested groups via h. A
// nil h means no group ever has nested children.
func NewGroupCache(h GroupHierarchy) *GroupCache {
	return &GroupCache{
		hierarchy:   h,
		hostMembers: hashset.New[struct{}](),
		closure:     make(map[uint64][]uint64),
	}
}

func membershipKey(groupID, hostID uint64) string {
	return fmt.Sprintf("%d:%d", groupID, hostID)
}

// SetHostMember records hostID as a direct member of groupID.
func (g *GroupCache) SetHostMember(groupID, hostID uint64) {
	g.hostMembers.Insert(membershipKey(groupID, hostID), struct{}{})
}

// RemoveHostMember removes hostID's direct membership in groupID.
func (g *GroupCache) RemoveHostMember(groupID, hostID uint64) {
	g.hostMembers.Remove(membershipKey(groupID, hostID))
}

// GroupHasHost reports whether hostID is a direct member of groupID.
func (g *GroupCache) GroupHasHost(groupID, hostID uint64) bool {
	_, ok := g.hostMembers.Search(membershipKey(groupID, hostID))
	return ok
}

// NestedGroupIDs returns the transitive closure of groups reachable
// from groupID, including groupID itself, computing and caching it on
// first request.
func (g *GroupCache) NestedGroupIDs(groupID uint64) []uint64 {
	g.mu.RLock()
	if ids, ok := g.closure[groupID]; ok {
		g.mu.RUnlock()
		return ids
	}
	g.mu.RUnlock()

	ids := g.computeClosure(groupID)

	g.mu.Lock()
	g.closure[groupID] = ids
	g.mu.Unlock()

	return ids
}

func (g *GroupCache) computeClosure(groupID uint64) []uint64 {
	if g.hierarchy == nil {
		return []uint64{groupID}
	}
	seen := map[uint64]struct{}{groupID: {}}
	queue := []uint64{groupID}
	result := []uint64{groupID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.hierarchy.ChildGroups(cur) {
			if _, dup := seen[child]; dup {
				continue
			}
			seen[child] = struct{}{}
			result = append(result, child)
			queue = append(queue, child)
		}
	}
	return result
}

// Invalidate drops any cached closures, forcing recomputation on next
// request. Call when the group hierarchy itself changes.
func (g *GroupCache) Invalidate() {
	g.mu.Lock()
	g.closure = make(map[uint64][]uint64)
	g.mu.Unlock()
}

// Precache eagerly computes and caches the nested closure for every
// group in groupIDs, used by UpdateMaintenances on Idle→Running
// transitions (spec.md §4.7) so the first MatchesHost call against a
// newly running maintenance never blocks on closure computation under
// the matcher's read lock.
func (g *GroupCache) Precache(groupIDs []uint64) {
	for _, id := range groupIDs {
		g.NestedGroupIDs(id)
	}
}
