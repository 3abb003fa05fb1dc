package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrydash/zbxcore/maintenance"
)

func newCache() *Cache {
	return New(Config{TimerCount: 16}, nil, nil)
}

func TestSyncMaintenancesUpsertAndDelete(t *testing.T) {
	c := newCache()
	c.SyncMaintenances(ChangeStream{
		{RowID: 1, Tag: ChangeUpsert, Columns: map[string]any{
			"kind": int(maintenance.Normal), "active_since": int64(1000), "active_until": int64(2000),
		}},
	})
	m := c.Maintenance(1)
	require.NotNil(t, m)
	assert.Equal(t, int64(1000), m.ActiveSince)
	assert.Equal(t, int64(2000), m.ActiveUntil)

	c.SyncMaintenances(ChangeStream{{RowID: 1, Tag: ChangeDelete}})
	assert.Nil(t, c.Maintenance(1), "expected maintenance to be removed")
}

func TestSyncMaintenanceTagsSkipsUnknownParent(t *testing.T) {
	c := newCache()
	c.SyncMaintenanceTags(ChangeStream{
		{RowID: 1, Tag: ChangeUpsert, Columns: map[string]any{"maintenanceid": uint64(99), "tag": "env", "value": "prod"}},
	})
	// no panic, nothing to assert directly since parent doesn't exist
}

func TestSyncMaintenanceTagsUpsertSortsByName(t *testing.T) {
	c := newCache()
	c.SyncMaintenances(ChangeStream{{RowID: 1, Tag: ChangeUpsert, Columns: map[string]any{}}})
	c.SyncMaintenanceTags(ChangeStream{
		{RowID: 10, Tag: ChangeUpsert, Columns: map[string]any{"maintenanceid": uint64(1), "tag": "zeta", "value": "x"}},
		{RowID: 11, Tag: ChangeUpsert, Columns: map[string]any{"maintenanceid": uint64(1), "tag": "alpha", "value": "y"}},
	})
	m := c.Maintenance(1)
	require.Len(t, m.Tags, 2)
	assert.Equal(t, "alpha", m.Tags[0].Tag)
	assert.Equal(t, "zeta", m.Tags[1].Tag)

	c.SyncMaintenanceTags(ChangeStream{{RowID: 10, Tag: ChangeDelete}})
	m = c.Maintenance(1)
	require.Len(t, m.Tags, 1)
	assert.Equal(t, "alpha", m.Tags[0].Tag)
}

func TestSyncMaintenanceTagsInternsAndReleases(t *testing.T) {
	c := newCache()
	c.SyncMaintenances(ChangeStream{{RowID: 1, Tag: ChangeUpsert, Columns: map[string]any{}}})

	c.SyncMaintenanceTags(ChangeStream{
		{RowID: 10, Tag: ChangeUpsert, Columns: map[string]any{"maintenanceid": uint64(1), "tag": "env", "value": "prod"}},
	})
	assert.Equal(t, 2, c.tags.Len(), "expected 2 interned strings after first upsert")

	// Re-acquiring the same tag/value on a second row must not grow the
	// pool: both rows share the same interned entries.
	c.SyncMaintenanceTags(ChangeStream{
		{RowID: 11, Tag: ChangeUpsert, Columns: map[string]any{"maintenanceid": uint64(1), "tag": "env", "value": "prod"}},
	})
	assert.Equal(t, 2, c.tags.Len(), "pool should stay at 2 distinct strings on a repeat value")

	// Updating row 10 to a new value releases its old handles.
	c.SyncMaintenanceTags(ChangeStream{
		{RowID: 10, Tag: ChangeUpsert, Columns: map[string]any{"maintenanceid": uint64(1), "tag": "region", "value": "us-east"}},
	})
	assert.Equal(t, 4, c.tags.Len(), "expected 4 distinct strings after updating row 10")

	c.SyncMaintenanceTags(ChangeStream{{RowID: 10, Tag: ChangeDelete}, {RowID: 11, Tag: ChangeDelete}})
	assert.Zero(t, c.tags.Len(), "pool should be empty once every tag row is deleted")
}

func TestSyncMaintenancesDeleteReleasesOrphanedTags(t *testing.T) {
	c := newCache()
	c.SyncMaintenances(ChangeStream{{RowID: 1, Tag: ChangeUpsert, Columns: map[string]any{}}})
	c.SyncMaintenanceTags(ChangeStream{
		{RowID: 10, Tag: ChangeUpsert, Columns: map[string]any{"maintenanceid": uint64(1), "tag": "env", "value": "prod"}},
	})
	require.Equal(t, 2, c.tags.Len())

	// The maintenance row is deleted without its child tag row being
	// deleted first; the cache must still release its interned handles.
	c.SyncMaintenances(ChangeStream{{RowID: 1, Tag: ChangeDelete}})
	assert.Zero(t, c.tags.Len(), "expected orphaned tag handles released")
	_, ok := c.tagHandles[10]
	assert.False(t, ok, "expected tagHandles entry for row 10 to be forgotten")
}

func TestSyncMaintenancePeriodsUpsertAndRemove(t *testing.T) {
	c := newCache()
	c.SyncMaintenances(ChangeStream{{RowID: 1, Tag: ChangeUpsert, Columns: map[string]any{}}})
	c.SyncMaintenancePeriods(ChangeStream{
		{RowID: 5, Tag: ChangeUpsert, Columns: map[string]any{"maintenanceid": uint64(1), "type": int(maintenance.Daily), "every": 1}},
	})
	m := c.Maintenance(1)
	require.Len(t, m.Periods, 1)
	assert.Equal(t, uint64(5), m.Periods[0].ID)

	c.SyncMaintenancePeriods(ChangeStream{{RowID: 5, Tag: ChangeDelete}})
	m = c.Maintenance(1)
	assert.Empty(t, m.Periods)
}

func TestSyncMaintenanceHostsGroupsByMaintenanceID(t *testing.T) {
	c := newCache()
	c.SyncMaintenances(ChangeStream{
		{RowID: 1, Tag: ChangeUpsert, Columns: map[string]any{}},
		{RowID: 2, Tag: ChangeUpsert, Columns: map[string]any{}},
	})
	c.SyncMaintenanceHosts(ChangeStream{
		{RowID: 100, Tag: ChangeUpsert, Columns: map[string]any{"maintenanceid": uint64(2), "hostid": uint64(20)}},
		{RowID: 101, Tag: ChangeUpsert, Columns: map[string]any{"maintenanceid": uint64(1), "hostid": uint64(10)}},
		{RowID: 102, Tag: ChangeUpsert, Columns: map[string]any{"maintenanceid": uint64(1), "hostid": uint64(11)}},
	})
	m1 := c.Maintenance(1)
	assert.Equal(t, []uint64{10, 11}, m1.HostIDs)
	m2 := c.Maintenance(2)
	assert.Equal(t, []uint64{20}, m2.HostIDs)

	c.SyncMaintenanceHosts(ChangeStream{{RowID: 101, Tag: ChangeDelete}})
	m1 = c.Maintenance(1)
	assert.Equal(t, []uint64{11}, m1.HostIDs)
}

func TestUpdateMaintenancesTransitionsIdleToRunning(t *testing.T) {
	c := newCache()
	c.SyncMaintenances(ChangeStream{
		{RowID: 1, Tag: ChangeUpsert, Columns: map[string]any{
			"active_since": int64(0), "active_until": int64(1_000_000),
		}},
	})
	c.SyncMaintenancePeriods(ChangeStream{
		{RowID: 1, Tag: ChangeUpsert, Columns: map[string]any{
			"maintenanceid": uint64(1), "type": int(maintenance.OneTime),
			"start_date": int64(500), "period": int64(600),
		}},
	})

	changed := c.UpdateMaintenances(600)
	assert.True(t, changed, "expected UpdateMaintenances to report a change")
	m := c.Maintenance(1)
	require.Equal(t, maintenance.Running, m.State)
	assert.Equal(t, int64(500), m.RunningSince)
	assert.Equal(t, int64(1100), m.RunningUntil)
}

func TestUpdateMaintenancesTransitionsRunningToIdle(t *testing.T) {
	c := newCache()
	c.SyncMaintenances(ChangeStream{
		{RowID: 1, Tag: ChangeUpsert, Columns: map[string]any{
			"active_since": int64(0), "active_until": int64(1_000_000),
		}},
	})
	c.SyncMaintenancePeriods(ChangeStream{
		{RowID: 1, Tag: ChangeUpsert, Columns: map[string]any{
			"maintenanceid": uint64(1), "type": int(maintenance.OneTime),
			"start_date": int64(500), "period": int64(600),
		}},
	})
	c.UpdateMaintenances(600)
	c.UpdateMaintenances(2000) // past the OneTime window
	m := c.Maintenance(1)
	require.Equal(t, maintenance.Idle, m.State)
	assert.Zero(t, m.RunningSince)
	assert.Zero(t, m.RunningUntil)
}
