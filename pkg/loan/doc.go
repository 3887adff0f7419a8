// Package loan defines the domain model for the LOSA loan origination
// engine: the application aggregate, its snapshot sections, the derived
// assessment records, the audit log entry shape, and the workflow status
// state machine with its allowed-transition table.
//
// Everything in this package is plain data plus pure functions. Stage
// execution, persistence, and policy enforcement live in pkg/engine,
// pkg/stores, and pkg/policy respectively.
package loan
