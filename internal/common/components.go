package common

const (
	ComponentSyncStore     = "sync-store"
	ComponentEventIterator = "event-iterator"
	ComponentMigrations    = "migrations"
	ComponentRPCCache      = "rpc-cache"
	ComponentMaintenance   = "maintenance"
)

var AllComponents = map[string]struct{}{
	ComponentSyncStore:     {},
	ComponentEventIterator: {},
	ComponentMigrations:    {},
	ComponentRPCCache:      {},
	ComponentMaintenance:   {},
}
