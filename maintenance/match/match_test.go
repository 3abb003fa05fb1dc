package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrydash/zbxcore/maintenance"
)

func newNormal(id uint64, hostIDs []uint64) *maintenance.Maintenance {
	return &maintenance.Maintenance{ID: id, Kind: maintenance.Normal, HostIDs: hostIDs}
}

func TestMatchesHostDirectSortedList(t *testing.T) {
	m := newNormal(1, []uint64{5, 10, 20})
	assert.True(t, MatchesHost(m, 10, nil), "expected direct host match")
	assert.False(t, MatchesHost(m, 11, nil), "expected no match for host not in list")
}

type fakeGroups struct {
	nested  map[uint64][]uint64
	members map[uint64]map[uint64]bool
}

func (g *fakeGroups) NestedGroupIDs(groupID uint64) []uint64 { return g.nested[groupID] }
func (g *fakeGroups) GroupHasHost(groupID, hostID uint64) bool {
	return g.members[groupID] != nil && g.members[groupID][hostID]
}

func TestMatchesHostViaNestedGroup(t *testing.T) {
	groups := &fakeGroups{
		nested:  map[uint64][]uint64{100: {100, 200}},
		members: map[uint64]map[uint64]bool{200: {42: true}},
	}
	m := &maintenance.Maintenance{ID: 1, GroupIDs: []uint64{100}}
	assert.True(t, MatchesHost(m, 42, groups), "expected nested-group match")
	assert.False(t, MatchesHost(m, 43, groups), "expected no match for host outside nested group")
}

func TestHostMaintenanceUpdatesSkipsProxies(t *testing.T) {
	running := []*maintenance.Maintenance{newNormal(1, []uint64{9})}
	hosts := []HostState{{HostID: 9, IsProxy: true}}
	diffs := HostMaintenanceUpdates(running, hosts, nil)
	assert.Empty(t, diffs, "expected proxies to be skipped")
}

func TestHostMaintenanceUpdatesNoDataOverridesNormal(t *testing.T) {
	normal := newNormal(1, []uint64{9})
	nodata := &maintenance.Maintenance{ID: 2, Kind: maintenance.NoData, HostIDs: []uint64{9}, RunningSince: 500}
	running := []*maintenance.Maintenance{normal, nodata}
	hosts := []HostState{{HostID: 9}}

	diffs := HostMaintenanceUpdates(running, hosts, nil)
	require.Len(t, diffs, 1)
	d := diffs[0]
	assert.Equal(t, uint64(2), d.MaintenanceID)
	assert.Equal(t, maintenance.NoData, d.MaintenanceKind)
}

func TestHostMaintenanceUpdatesNoChangeEmitsNoDiff(t *testing.T) {
	running := []*maintenance.Maintenance{newNormal(1, []uint64{9})}
	hosts := []HostState{{
		HostID:              9,
		CachedMaintenanceID: 1,
		CachedStatus:        maintenance.StatusOn,
		CachedKind:          maintenance.Normal,
	}}
	diffs := HostMaintenanceUpdates(running, hosts, nil)
	assert.Empty(t, diffs, "expected no diff for unchanged host")
}

func TestHostMaintenanceUpdatesHostLeavesMaintenance(t *testing.T) {
	hosts := []HostState{{
		HostID:              9,
		CachedMaintenanceID: 1,
		CachedStatus:        maintenance.StatusOn,
		CachedKind:          maintenance.Normal,
	}}
	diffs := HostMaintenanceUpdates(nil, hosts, nil)
	require.Len(t, diffs, 1)
	assert.Equal(t, maintenance.StatusOff, diffs[0].MaintenanceStatus)
}

func TestTagsMatchOr(t *testing.T) {
	m := &maintenance.Maintenance{
		TagsEvalType: maintenance.Or,
		Tags: []maintenance.MaintenanceTag{
			{Tag: "env", Op: maintenance.Equal, Value: "prod"},
			{Tag: "env", Op: maintenance.Equal, Value: "stage"},
		},
	}
	assert.True(t, EventMatchesMaintenanceTags(m, []maintenance.EventTag{{Tag: "env", Value: "stage"}}), "expected Or match on stage")
	assert.False(t, EventMatchesMaintenanceTags(m, []maintenance.EventTag{{Tag: "env", Value: "dev"}}), "expected no match for dev")
}

func TestTagsMatchAndOrRequiresEveryName(t *testing.T) {
	m := &maintenance.Maintenance{
		TagsEvalType: maintenance.AndOr,
		Tags: []maintenance.MaintenanceTag{
			{Tag: "env", Op: maintenance.Equal, Value: "prod"},
			{Tag: "service", Op: maintenance.Like, Value: "api"},
		},
	}
	ok := EventMatchesMaintenanceTags(m, []maintenance.EventTag{
		{Tag: "env", Value: "prod"},
		{Tag: "service", Value: "api-gateway"},
	})
	assert.True(t, ok, "expected AndOr match when both names satisfied")

	missing := EventMatchesMaintenanceTags(m, []maintenance.EventTag{{Tag: "env", Value: "prod"}})
	assert.False(t, missing, "expected AndOr to fail when service tag absent")
}

func TestTagsMatchNoTagsAlwaysMatches(t *testing.T) {
	m := &maintenance.Maintenance{}
	assert.True(t, EventMatchesMaintenanceTags(m, nil), "expected maintenance with no tags to always match")
}

type fakeFunctionHosts struct {
	hosts map[uint64]uint64
}

func (f *fakeFunctionHosts) HostForFunction(functionID uint64) (uint64, bool) {
	h, ok := f.hosts[functionID]
	return h, ok
}

func TestEventMaintenances(t *testing.T) {
	m := &maintenance.Maintenance{
		ID: 7, HostIDs: []uint64{42}, RunningUntil: 9999,
		TagsEvalType: maintenance.Or,
		Tags:         []maintenance.MaintenanceTag{{Tag: "env", Op: maintenance.Equal, Value: "prod"}},
	}
	running := []*maintenance.Maintenance{m}
	fns := &fakeFunctionHosts{hosts: map[uint64]uint64{1: 42}}

	query := &maintenance.EventSuppressQuery{
		FunctionIDs: []uint64{1},
		Tags:        []maintenance.EventTag{{Tag: "env", Value: "prod"}},
	}
	EventMaintenances(query, running, fns, nil)
	require.Len(t, query.Matches, 1)
	assert.Equal(t, uint64(7), query.Matches[0].MaintenanceID)

	query2 := &maintenance.EventSuppressQuery{
		FunctionIDs: []uint64{1},
		Tags:        []maintenance.EventTag{{Tag: "env", Value: "dev"}},
	}
	EventMaintenances(query2, running, fns, nil)
	assert.Empty(t, query2.Matches, "expected no match for mismatched tag")
}
