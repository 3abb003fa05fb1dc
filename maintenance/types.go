// Package maintenance defines the entities of the maintenance
// scheduler: Maintenance, MaintenanceTag, MaintenancePeriod, and the
// diff/query types the cache, calendar, and match subpackages operate
// on (spec.md §3).
package maintenance

// Kind distinguishes a Normal maintenance (alerting suppressed) from
// a NoData one (missing data treated as absent, not alerting).
type Kind int

const (
	Normal Kind = iota
	NoData
)

// TagsEvalType selects how a maintenance's tags are matched against
// an event's tags (spec.md §4.10).
type TagsEvalType int

const (
	AndOr TagsEvalType = iota
	Or
)

// RunState is a maintenance's runtime state.
type RunState int

const (
	Idle RunState = iota
	Running
)

// TagOp is the comparison operator a MaintenanceTag uses against an
// event tag's value.
type TagOp int

const (
	Like TagOp = iota
	Equal
)

// PeriodKind selects how a MaintenancePeriod's fields are interpreted
// (spec.md §4.6).
type PeriodKind int

const (
	OneTime PeriodKind = iota
	Daily
	Weekly
	Monthly
)

// Maintenance is a declared suppression window plus the calendar
// rules and matching criteria that decide when it is active.
type Maintenance struct {
	ID uint64

	Kind          Kind
	ActiveSince   int64 // epoch seconds; ActiveSince <= ActiveUntil
	ActiveUntil   int64
	TagsEvalType  TagsEvalType

	State         RunState
	RunningSince  int64 // valid only when State == Running
	RunningUntil  int64 // RunningSince < RunningUntil <= ActiveUntil

	// HostIDs is sorted ascending to support binary search (spec.md §3).
	HostIDs  []uint64
	GroupIDs []uint64

	// Tags is sorted lexicographically by Tag name (spec.md §3, §4.10).
	Tags []MaintenanceTag

	Periods []MaintenancePeriod
}

// MaintenanceTag is one (tag, value) matching criterion belonging to
// a Maintenance.
type MaintenanceTag struct {
	ID            uint64
	MaintenanceID uint64
	Op            TagOp
	Tag           string
	Value         string
}

// MaintenancePeriod is one calendar rule belonging to a Maintenance.
// Field interpretation is type-dependent; see spec.md §4.6 and package
// calendar.
type MaintenancePeriod struct {
	ID            uint64
	MaintenanceID uint64
	Kind          PeriodKind

	Every     int   // Daily: every N days. Weekly: every N weeks. Monthly: ordinal (1..4, 5=last).
	Month     uint16 // bitmask over months 0..11
	DayOfWeek uint8  // bitmask over 0..6, Mon=0
	Day       int    // Monthly: day-of-month, 0 means "use DayOfWeek+Every instead"

	StartTime int64 // seconds within a day
	Period    int64 // duration in seconds
	StartDate int64 // epoch seconds, OneTime only
}

// HostMaintenanceDiff describes which cached fields on a host differ
// from the maintenance state just computed for it (spec.md §3, §4.8).
type HostMaintenanceDiff struct {
	HostID              uint64
	Flags               DiffFlags
	MaintenanceID       uint64
	MaintenanceStatus   HostMaintenanceStatus
	MaintenanceFrom     int64
	MaintenanceKind     Kind
}

// DiffFlags is a bitset marking which HostMaintenanceDiff fields
// differ from the currently cached values.
type DiffFlags uint8

const (
	DiffMaintenanceID DiffFlags = 1 << iota
	DiffStatus
	DiffFrom
	DiffKind
)

// HostMaintenanceStatus is whether a host is currently suppressed.
type HostMaintenanceStatus int

const (
	StatusOff HostMaintenanceStatus = iota
	StatusOn
)

// RunningMaintenance identifies a maintenance ID and the instant its
// current running interval ends, as surfaced to event queries
// (spec.md §4.9).
type RunningMaintenance struct {
	MaintenanceID uint64
	RunningUntil  int64
}

// EventTag is one tag/value pair attached to an event.
type EventTag struct {
	Tag   string
	Value string
}

// EventSuppressQuery asks which running maintenances suppress an
// event identified by function IDs and tags (spec.md §3, §4.9).
type EventSuppressQuery struct {
	FunctionIDs []uint64
	// Tags must be sorted by Tag name before matching (spec.md §3).
	Tags []EventTag

	// Matches is populated by match.EventMaintenances with every
	// running maintenance that suppresses this event.
	Matches []RunningMaintenance
}
