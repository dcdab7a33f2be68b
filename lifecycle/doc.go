// Package lifecycle routes record lifecycle events to handlers.
//
// A host raises one Event per batch of affected records. The Dispatcher calls
// exactly one Handler method for the event kind:
//
//	BEFORE_INSERT   BeforeInsert(new)
//	AFTER_INSERT    AfterInsert(new, newByID)
//	BEFORE_UPDATE   BeforeUpdate(new, newByID, old, oldByID)
//	AFTER_UPDATE    AfterUpdate(new, newByID, old, oldByID)
//	BEFORE_DELETE   BeforeDelete(old, oldByID)
//	AFTER_DELETE    AfterDelete(old, oldByID)
//	AFTER_UNDELETE  AfterUndelete(new, newByID)
//
// Payloads are passed through as given. A kind outside this table panics.
//
// Handlers usually load related data with a query.Builder and share results
// across batches through a resultcache.ResultCache taken from the context.
package lifecycle
