// Package pgstore implements delivery.Store on PostgreSQL with pgx.
//
// Notification updates use the version column for optimistic concurrency:
// an UPDATE that matches no row at the expected version reports
// delivery.ErrConflict. Delivery logs keep append order through a bigserial
// sequence. The schema ships as embedded goose migrations in Migrations.
package pgstore
