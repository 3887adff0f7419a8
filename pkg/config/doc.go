// Package config loads and validates the workflow configuration: product
// amount bounds per loan type, underwriting thresholds, document
// verification tolerances, risk band cutoffs, and the engine's retry and
// timeout policy. Configuration is read from YAML, validated, and treated
// as immutable for the duration of one workflow advance; a file watcher
// supports hot reload between advances.
package config
