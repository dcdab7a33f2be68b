// Package repositoryevents decorates go-repository-bun repositories so
// that writes raise lifecycle events.
//
// # Overview
//
// The decorator sits in front of any repository.Repository[T] and forwards
// every call. Writes are bracketed by events:
//
//	Create, CreateMany        BEFORE_INSERT, write, AFTER_INSERT
//	Update, UpdateMany        load stored rows, BEFORE_UPDATE, write, AFTER_UPDATE
//	Upsert, UpsertMany        split into inserts and updates, then both of the above
//	Delete, ForceDelete       BEFORE_DELETE, write, AFTER_DELETE
//	Undelete                  write through Update, AFTER_UNDELETE
//
// Transaction variants behave the same and read stored rows through the
// transaction.
//
// # Basic Usage
//
//	var base repository.Repository[*Contact] = newContactRepository(db)
//	contacts := repositoryevents.New(
//		base,
//		lifecycle.NewDispatcher(contactHandler),
//		repositoryevents.BunMapper[*Contact](db),
//	)
//
//	if _, err := contacts.Create(ctx, contact); err != nil {
//		// a BEFORE_INSERT handler rejected the contact, nothing was written
//	}
//
// # Routing
//
// Several decorated repositories can share one lifecycle.Router:
//
//	router := lifecycle.NewRouter().
//		Register("Contact", contactHandler).
//		Register("Account", accountHandler)
//
//	contacts := repositoryevents.New(base, router.For("Contact"), mapper)
//
// # Errors
//
// A failing before handler aborts the write and its error is returned. A
// failing after handler does not undo the write: the written records are
// returned with the error, so callers running inside a transaction can
// roll back.
package repositoryevents
