package match

import "github.com/terrydash/zbxcore/maintenance"

// FunctionHostResolver maps a trigger function ID to the host ID it
// is evaluated on — the external collaborator spec.md §4.9 assumes
// when resolving an event's function IDs to hosts.
type FunctionHostResolver interface {
	HostForFunction(functionID uint64) (hostID uint64, ok bool)
}

// EventMaintenances populates query.Matches with every running
// maintenance that suppresses the event (spec.md §4.9): the
// maintenance must match at least one host reachable from the
// event's function IDs, and the event's tags must satisfy the
// maintenance's tag criteria.
func EventMaintenances(query *maintenance.EventSuppressQuery, running []*maintenance.Maintenance, hosts FunctionHostResolver, groups GroupResolver) {
	query.Matches = nil

	hostIDs := make(map[uint64]struct{})
	for _, fid := range query.FunctionIDs {
		if hostID, ok := hosts.HostForFunction(fid); ok {
			hostIDs[hostID] = struct{}{}
		}
	}
	if len(hostIDs) == 0 {
		return
	}

	for _, m := range running {
		matchedHost := false
		for hostID := range hostIDs {
			if MatchesHost(m, hostID, groups) {
				matchedHost = true
				break
			}
		}
		if !matchedHost {
			continue
		}
		if !EventMatchesMaintenanceTags(m, query.Tags) {
			continue
		}
		query.Matches = append(query.Matches, maintenance.RunningMaintenance{
			MaintenanceID: m.ID,
			RunningUntil:  m.RunningUntil,
		})
	}
}
