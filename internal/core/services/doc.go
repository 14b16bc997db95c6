// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services are pure Go with no CGO. Bounded concurrency comes from
// golang.org/x/sync and spans from OpenTelemetry.
package services
