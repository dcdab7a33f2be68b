// Package metadata provides query.MetadataProvider implementations.
//
// Static holds entity fields and field sets in memory and can be loaded from
// YAML. BunProvider reflects bun models, using table names as entity types,
// column names as fields and the `fieldset` struct tag for field sets:
//
//	type Account struct {
//		bun.BaseModel `bun:"table:Account"`
//		Id       int64  `bun:"Id,pk" fieldset:"summary"`
//		Name     string `bun:"Name" fieldset:"summary,detail"`
//		Industry string `bun:"Industry" fieldset:"detail"`
//	}
package metadata
