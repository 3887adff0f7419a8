// Package providers contains capability client implementations for the
// workflow engine: the credit bureau, the document analyzer, the risk
// model and the notification senders.
//
// The simulated clients here are deterministic stand-ins for external
// integrations. They derive their answers from the application data
// itself, so the same application always takes the same path through the
// workflow. Production deployments swap in real integrations behind the
// same interfaces.
package providers
