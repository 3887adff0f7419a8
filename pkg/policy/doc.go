// Package policy provides underwriting-compliance policy evaluation
// backed by Open Policy Agent's Rego engine.
//
// Policies evaluate one loan application at a time during the validation
// stage. The input document carries the application snapshot, the derived
// values the stage computed (age, debt-to-income ratio), and the
// configured underwriting limits, so thresholds live in configuration
// rather than in the policy text. Each policy's deny set yields
// violations; error-severity violations become rejection reasons, while
// warnings ride along as reviewer context.
//
// Built-in policies cover the DTI ceiling, per-product amount and term
// bounds, minimum applicant age, and collateral requirements for secured
// products. Additional .rego or .json policy files can be loaded from
// disk and hot-reloaded through the file watcher.
package policy
