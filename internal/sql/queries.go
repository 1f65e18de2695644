// Package sql embeds the schema migrations and queries of the fact store.
package sql

import (
	"embed"
)

// Migrations holds the DDL applied by db.ApplyMigrations.
//
//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/identities_by_billing_id.sql
var IdentitiesByBillingID string

//go:embed queries/identities_by_encounter_id.sql
var IdentitiesByEncounterID string

//go:embed queries/script_sources.sql
var ScriptSources string

//go:embed queries/delete_encounter_facts.sql
var DeleteEncounterFacts string
