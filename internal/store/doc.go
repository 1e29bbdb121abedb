// Package store owns the SQLite database that backs users and their tasks.
//
// The schema is fixed and created lazily on every Open:
//
//	users(id INTEGER PRIMARY KEY, username TEXT NOT NULL UNIQUE, password_hash TEXT NOT NULL)
//	tasks(id INTEGER PRIMARY KEY, owner_id INTEGER NOT NULL REFERENCES users(id),
//	      description TEXT NOT NULL, completed INTEGER NOT NULL CHECK (completed IN (0,1)))
//
// Foreign keys are enforced on every connection. There is no migration
// machinery; a creation failure is fatal to startup.
package store
