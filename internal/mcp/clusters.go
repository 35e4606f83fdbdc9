package mcp

// Cluster groups a tool by the subsystem it exercises. Every registered tool
// reports exactly one cluster, used for both tool-filter profiles and
// structured logging of which subsystem a call touched.
type Cluster string

const (
	ClusterInfrastructure   Cluster = "infrastructure"
	ClusterIdentity         Cluster = "identity"
	ClusterMessaging        Cluster = "messaging"
	ClusterContact          Cluster = "contact"
	ClusterSearch           Cluster = "search"
	ClusterFileReservations Cluster = "file_reservations"
	ClusterWorkflowMacros   Cluster = "workflow_macros"
	ClusterBuildSlots       Cluster = "build_slots"
	ClusterProductBus       Cluster = "product_bus"
)

// Profile is one of the configured tool-filter profiles. Tools outside the
// selected profile's cluster set are dropped from the registry at startup,
// not filtered per call, so a client's tools/list reflects a genuinely
// smaller surface rather than a server that silently refuses some calls.
type Profile string

const (
	ProfileFull      Profile = "full"
	ProfileCore      Profile = "core"
	ProfileMinimal   Profile = "minimal"
	ProfileMessaging Profile = "messaging"
	ProfileCustom    Profile = "custom"
)

// profileClusters fixes which clusters each built-in profile admits. "full"
// is every cluster; "minimal" is just enough to register a project and an
// agent; "core" adds the clusters a working agent needs day to day; the
// dedicated "messaging" profile is for deployments that want coordination-
// bus mail only, without reservations or search. "custom" has no fixed set
// here — see Registry.Filter.
var profileClusters = map[Profile]map[Cluster]bool{
	ProfileMinimal: {
		ClusterInfrastructure: true,
		ClusterIdentity:       true,
	},
	ProfileMessaging: {
		ClusterInfrastructure: true,
		ClusterIdentity:       true,
		ClusterMessaging:      true,
		ClusterContact:        true,
	},
	ProfileCore: {
		ClusterInfrastructure:   true,
		ClusterIdentity:         true,
		ClusterMessaging:        true,
		ClusterContact:          true,
		ClusterSearch:           true,
		ClusterFileReservations: true,
	},
}

// allowedIn reports whether cluster c is admitted by profile p. For "full"
// every cluster is admitted; for "custom" the decision is made by the
// caller-supplied clusters set passed to Registry.Filter, not by this table.
func allowedIn(p Profile, c Cluster) bool {
	if p == ProfileFull {
		return true
	}
	set, ok := profileClusters[p]
	if !ok {
		return false
	}
	return set[c]
}
