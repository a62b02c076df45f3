// Package campaign implements campaign lifecycle management.
//
// The service layer contains the business rules for creating, scheduling,
// and deleting campaigns, plus the status transitions the dispatcher drives.
// It depends on the Repository interface defined in this package and should
// never import from api/. The Postgres implementation lives in
// repository/postgres.
package campaign
