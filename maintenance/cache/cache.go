// Package cache is the process-wide, RWMutex-protected configuration
// cache of spec.md §3/§5/§6: maintenances, their tags and periods,
// kept in sync from an external ChangeStream and evaluated against
// wall-clock time by UpdateMaintenances (§4.7).
//
// Grounded on the teacher's datalog/planner.PlanCache (RWMutex plus
// stats counters sized at construction) and datalog/storage.Database
// (RWMutex plus an atomic counter plus a map of live state).
package cache

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/terrydash/zbxcore/internal/strpool"
	"github.com/terrydash/zbxcore/maintenance"
	"github.com/terrydash/zbxcore/maintenance/calendar"
	"github.com/terrydash/zbxcore/maintenance/timer"
	"github.com/terrydash/zbxcore/telemetry"
)

const secPerDay = 86400

// Config sizes the cache at construction, mirroring
// planner.NewPlanCache(maxSize, ttl) taking explicit sizing parameters
// rather than reading globals.
type Config struct {
	// TimerCount is the number of timer shards (spec.md §4.11).
	TimerCount int
}

type hostAssoc struct {
	maintenanceID uint64
	hostID        uint64
}

type groupAssoc struct {
	maintenanceID uint64
	groupID       uint64
}

// tagHandles is the pair of interned handles backing one
// MaintenanceTag's Tag/Value strings, kept so a later update or
// removal can release them (spec.md §5/§6: "release old, acquire
// new").
type tagHandles struct {
	tag   strpool.Handle
	value strpool.Handle
}

// Cache is the maintenance scheduler's single shared handle. All
// entry points take it explicitly; there is no ambient global.
type Cache struct {
	mu     sync.RWMutex
	config Config
	log    *telemetry.Logger

	maintenances map[uint64]*maintenance.Maintenance

	tagParent    map[uint64]uint64 // tag row id -> maintenance id
	periodParent map[uint64]uint64 // period row id -> maintenance id
	hostAssocs   map[uint64]hostAssoc
	groupAssocs  map[uint64]groupAssoc

	tags       *strpool.Pool
	tagHandles map[uint64]tagHandles // tag row id -> interned (tag, value) handles

	updateLatch int32 // atomic; set by Sync* calls, drained by UpdateMaintenances

	Groups *GroupCache
	Timers *timer.Flags

	startedCount uint64
}

// New returns an empty Cache sized by cfg. log may be nil.
func New(cfg Config, groups *GroupCache, log *telemetry.Logger) *Cache {
	if groups == nil {
		groups = NewGroupCache(nil)
	}
	return &Cache{
		config:       cfg,
		log:          log,
		maintenances: make(map[uint64]*maintenance.Maintenance),
		tagParent:    make(map[uint64]uint64),
		periodParent: make(map[uint64]uint64),
		hostAssocs:   make(map[uint64]hostAssoc),
		groupAssocs:  make(map[uint64]groupAssoc),
		tags:         strpool.New(),
		tagHandles:   make(map[uint64]tagHandles),
		Groups:       groups,
		Timers:       timer.New(cfg.TimerCount),
	}
}

func (c *Cache) debugf(name string, data map[string]any) {
	if c.log != nil {
		c.log.Debug(name, data)
	}
}

func (c *Cache) markUpdate() {
	atomic.StoreInt32(&c.updateLatch, 1)
}

// Maintenance returns the cached maintenance by ID, or nil.
func (c *Cache) Maintenance(id uint64) *maintenance.Maintenance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maintenances[id]
}

// RunningMaintenances returns every maintenance currently in
// RunState == Running.
func (c *Cache) RunningMaintenances() []*maintenance.Maintenance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*maintenance.Maintenance
	for _, m := range c.maintenances {
		if m.State == maintenance.Running {
			out = append(out, m)
		}
	}
	return out
}

// SyncMaintenances applies a ChangeStream of base maintenance rows
// (spec.md §6). Upserts are applied before deletes.
func (c *Cache) SyncMaintenances(stream ChangeStream) {
	c.mu.Lock()
	defer c.mu.Unlock()

	upserts, deletes := splitByTag(stream)

	for _, ch := range upserts {
		m, ok := c.maintenances[ch.RowID]
		if !ok {
			m = &maintenance.Maintenance{ID: ch.RowID}
			c.maintenances[ch.RowID] = m
		}
		m.Kind = maintenance.Kind(columnInt(ch.Columns, "kind"))
		m.ActiveSince = columnInt64(ch.Columns, "active_since")
		m.ActiveUntil = columnInt64(ch.Columns, "active_until")
		m.TagsEvalType = maintenance.TagsEvalType(columnInt(ch.Columns, "tags_eval_type"))
	}
	for _, ch := range deletes {
		delete(c.maintenances, ch.RowID)
		c.releaseOrphanedTags(ch.RowID)
	}

	c.markUpdate()
}

// releaseOrphanedTags releases and forgets every interned tag handle
// still attributed to maintID, so a maintenance deleted without its
// child maintenance_tag rows first being deleted doesn't leak pool
// entries.
func (c *Cache) releaseOrphanedTags(maintID uint64) {
	for tagID, parent := range c.tagParent {
		if parent != maintID {
			continue
		}
		if handles, ok := c.tagHandles[tagID]; ok {
			c.tags.Release(handles.tag)
			c.tags.Release(handles.value)
			delete(c.tagHandles, tagID)
		}
		delete(c.tagParent, tagID)
	}
}

// SyncMaintenanceTags applies a ChangeStream of maintenance_tag rows
// (spec.md §6). Rows whose parent maintenance is not cached are
// skipped with a debug-level event. Tag and value strings are
// interned through c.tags: an update releases its previous handles
// before acquiring the new ones, and a removal releases the handles
// it held, per spec.md §5's "release old, acquire new" discipline.
func (c *Cache) SyncMaintenanceTags(stream ChangeStream) {
	c.mu.Lock()
	defer c.mu.Unlock()

	upserts, deletes := splitByTag(stream)

	for _, ch := range upserts {
		maintID := columnUint64(ch.Columns, "maintenanceid")
		m, ok := c.maintenances[maintID]
		if !ok {
			c.debugf("maintenance.sync.tags.unknown_parent", map[string]any{"tag_id": ch.RowID, "maintenance_id": maintID})
			continue
		}

		if old, ok := c.tagHandles[ch.RowID]; ok {
			c.tags.Release(old.tag)
			c.tags.Release(old.value)
		}
		handles := tagHandles{
			tag:   c.tags.Acquire(columnString(ch.Columns, "tag")),
			value: c.tags.Acquire(columnString(ch.Columns, "value")),
		}
		c.tagHandles[ch.RowID] = handles

		tag := maintenance.MaintenanceTag{
			ID:            ch.RowID,
			MaintenanceID: maintID,
			Op:            maintenance.TagOp(columnInt(ch.Columns, "op")),
			Tag:           handles.tag.String(),
			Value:         handles.value.String(),
		}
		upsertTag(m, tag)
		c.tagParent[ch.RowID] = maintID
	}
	for _, ch := range deletes {
		maintID, ok := c.tagParent[ch.RowID]
		if !ok {
			continue
		}
		if m, ok := c.maintenances[maintID]; ok {
			removeTag(m, ch.RowID)
		}
		if handles, ok := c.tagHandles[ch.RowID]; ok {
			c.tags.Release(handles.tag)
			c.tags.Release(handles.value)
			delete(c.tagHandles, ch.RowID)
		}
		delete(c.tagParent, ch.RowID)
	}

	c.markUpdate()
}

func upsertTag(m *maintenance.Maintenance, tag maintenance.MaintenanceTag) {
	for i := range m.Tags {
		if m.Tags[i].ID == tag.ID {
			m.Tags[i] = tag
			sortTags(m.Tags)
			return
		}
	}
	m.Tags = append(m.Tags, tag)
	sortTags(m.Tags)
}

func removeTag(m *maintenance.Maintenance, tagID uint64) {
	for i := range m.Tags {
		if m.Tags[i].ID == tagID {
			m.Tags = append(m.Tags[:i], m.Tags[i+1:]...)
			return
		}
	}
}

func sortTags(tags []maintenance.MaintenanceTag) {
	sort.Slice(tags, func(i, j int) bool { return tags[i].Tag < tags[j].Tag })
}

// SyncMaintenancePeriods applies a ChangeStream of maintenance_period
// rows (spec.md §6). Period removal is resolved with an explicit
// periodKey comparator on the stored element (spec.md §9: the source
// compares a value against stored pointers; here the parent's slice
// holds values, so removal matches by ID directly rather than by
// pointer identity).
func (c *Cache) SyncMaintenancePeriods(stream ChangeStream) {
	c.mu.Lock()
	defer c.mu.Unlock()

	upserts, deletes := splitByTag(stream)

	for _, ch := range upserts {
		maintID := columnUint64(ch.Columns, "maintenanceid")
		m, ok := c.maintenances[maintID]
		if !ok {
			c.debugf("maintenance.sync.periods.unknown_parent", map[string]any{"period_id": ch.RowID, "maintenance_id": maintID})
			continue
		}
		p := maintenance.MaintenancePeriod{
			ID:            ch.RowID,
			MaintenanceID: maintID,
			Kind:          maintenance.PeriodKind(columnInt(ch.Columns, "type")),
			Every:         columnInt(ch.Columns, "every"),
			Month:         uint16(columnInt(ch.Columns, "month")),
			DayOfWeek:     uint8(columnInt(ch.Columns, "dayofweek")),
			Day:           columnInt(ch.Columns, "day"),
			StartTime:     columnInt64(ch.Columns, "start_time"),
			Period:        columnInt64(ch.Columns, "period"),
			StartDate:     columnInt64(ch.Columns, "start_date"),
		}
		upsertPeriod(m, p)
		c.periodParent[ch.RowID] = maintID
	}
	for _, ch := range deletes {
		maintID, ok := c.periodParent[ch.RowID]
		if !ok {
			continue
		}
		if m, ok := c.maintenances[maintID]; ok {
			removePeriod(m, periodKey(ch.RowID))
		}
		delete(c.periodParent, ch.RowID)
	}

	c.markUpdate()
}

// periodKey names the comparator key removePeriod matches against,
// keeping the comparison explicit about what identifies a period.
func periodKey(id uint64) uint64 { return id }

func upsertPeriod(m *maintenance.Maintenance, p maintenance.MaintenancePeriod) {
	for i := range m.Periods {
		if periodKey(m.Periods[i].ID) == periodKey(p.ID) {
			m.Periods[i] = p
			return
		}
	}
	m.Periods = append(m.Periods, p)
}

func removePeriod(m *maintenance.Maintenance, key uint64) {
	for i := range m.Periods {
		if periodKey(m.Periods[i].ID) == key {
			m.Periods = append(m.Periods[:i], m.Periods[i+1:]...)
			return
		}
	}
}

// SyncMaintenanceGroups applies a ChangeStream of maintenance-to-group
// association rows, rebuilding each affected maintenance's GroupIDs
// from the full upsert batch grouped by maintenance id (spec.md §6).
func (c *Cache) SyncMaintenanceGroups(stream ChangeStream) {
	c.mu.Lock()
	defer c.mu.Unlock()

	upserts, deletes := splitByTag(stream)
	sort.Slice(upserts, func(i, j int) bool {
		return columnUint64(upserts[i].Columns, "maintenanceid") < columnUint64(upserts[j].Columns, "maintenanceid")
	})

	var hasPrev bool
	var lastID uint64
	var group []uint64
	flush := func() {
		if !hasPrev {
			return
		}
		m, ok := c.maintenances[lastID]
		if !ok {
			c.debugf("maintenance.sync.groups.unknown_parent", map[string]any{"maintenance_id": lastID})
			return
		}
		sorted := append([]uint64(nil), group...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		m.GroupIDs = sorted
	}
	for _, ch := range upserts {
		maintID := columnUint64(ch.Columns, "maintenanceid")
		groupID := columnUint64(ch.Columns, "groupid")
		if !hasPrev || maintID != lastID {
			flush()
			hasPrev = true
			lastID = maintID
			group = nil
		}
		group = append(group, groupID)
		c.groupAssocs[ch.RowID] = groupAssoc{maintenanceID: maintID, groupID: groupID}
	}
	flush()

	for _, ch := range deletes {
		assoc, ok := c.groupAssocs[ch.RowID]
		if !ok {
			continue
		}
		if m, ok := c.maintenances[assoc.maintenanceID]; ok {
			m.GroupIDs = removeUint64(m.GroupIDs, assoc.groupID)
		}
		delete(c.groupAssocs, ch.RowID)
	}

	c.markUpdate()
}

// SyncMaintenanceHosts applies a ChangeStream of maintenance-to-host
// association rows (spec.md §6, §9). The source's
// DCsync_maintenance_hosts reads last_maintenanceid before it is ever
// initialized on the first loop iteration, guarding only by
// NULL == maintenance; here an explicit hasPrev flag replaces that
// guard so the first group boundary is never mistaken for a
// continuation of a prior (nonexistent) group.
func (c *Cache) SyncMaintenanceHosts(stream ChangeStream) {
	c.mu.Lock()
	defer c.mu.Unlock()

	upserts, deletes := splitByTag(stream)
	sort.Slice(upserts, func(i, j int) bool {
		return columnUint64(upserts[i].Columns, "maintenanceid") < columnUint64(upserts[j].Columns, "maintenanceid")
	})

	var hasPrev bool
	var lastID uint64
	var group []uint64
	flush := func() {
		if !hasPrev {
			return
		}
		m, ok := c.maintenances[lastID]
		if !ok {
			c.debugf("maintenance.sync.hosts.unknown_parent", map[string]any{"maintenance_id": lastID})
			return
		}
		sorted := append([]uint64(nil), group...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		m.HostIDs = sorted
	}
	for _, ch := range upserts {
		maintID := columnUint64(ch.Columns, "maintenanceid")
		hostID := columnUint64(ch.Columns, "hostid")
		if !hasPrev || maintID != lastID {
			flush()
			hasPrev = true
			lastID = maintID
			group = nil
		}
		group = append(group, hostID)
		c.hostAssocs[ch.RowID] = hostAssoc{maintenanceID: maintID, hostID: hostID}
	}
	flush()

	for _, ch := range deletes {
		assoc, ok := c.hostAssocs[ch.RowID]
		if !ok {
			continue
		}
		if m, ok := c.maintenances[assoc.maintenanceID]; ok {
			m.HostIDs = removeUint64(m.HostIDs, assoc.hostID)
		}
		delete(c.hostAssocs, ch.RowID)
	}

	c.markUpdate()
}

func removeUint64(ids []uint64, id uint64) []uint64 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// UpdateMaintenances runs update_maintenances (spec.md §4.7) under the
// cache's write lock: it drains the update latch, evaluates every
// cached maintenance's periods against now, and transitions
// Idle/Running state. It returns true iff anything changed (a sync
// occurred since the last call, or any maintenance's state or running
// interval changed).
func (c *Cache) UpdateMaintenances(now int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := atomic.SwapInt32(&c.updateLatch, 0) != 0
	secondsToday := now % secPerDay

	for _, m := range c.maintenances {
		if now < m.ActiveSince || now >= m.ActiveUntil {
			if m.State == maintenance.Running {
				m.State = maintenance.Idle
				m.RunningSince, m.RunningUntil = 0, 0
				changed = true
			}
			continue
		}

		var bestUntil int64 = -1
		var bestSince int64

		for i := range m.Periods {
			p := &m.Periods[i]
			probeStart := now - secondsToday + p.StartTime
			if secondsToday < p.StartTime {
				probeStart -= secPerDay
			}
			since, until, ok := calendar.Evaluate(m, p, probeStart)
			if !ok {
				continue
			}
			if now < since || now >= until {
				continue
			}
			if until > bestUntil {
				bestSince, bestUntil = since, until
			}
		}

		switch {
		case bestUntil < 0:
			if m.State == maintenance.Running {
				m.State = maintenance.Idle
				m.RunningSince, m.RunningUntil = 0, 0
				changed = true
			}
		case m.State != maintenance.Running:
			m.State = maintenance.Running
			m.RunningSince, m.RunningUntil = bestSince, bestUntil
			c.startedCount++
			c.Groups.Precache(m.GroupIDs)
			changed = true
		case m.RunningUntil != bestUntil:
			m.RunningSince, m.RunningUntil = bestSince, bestUntil
			changed = true
		}
	}

	return changed
}

// StartedCount returns the number of Idle→Running transitions observed
// since construction.
func (c *Cache) StartedCount() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startedCount
}
