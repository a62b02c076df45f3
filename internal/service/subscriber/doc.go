// Package subscriber implements the subscriber registry: signup,
// reactivation, unsubscribe, and the status transitions the campaign
// dispatcher depends on.
//
// The service layer owns all subscriber business rules. It depends on the
// Repository interface defined in this package and should never import from
// api/. The Postgres implementation lives in repository/postgres.
package subscriber
