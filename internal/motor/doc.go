// Package motor runs a supervised control session against one actuator.
//
// Ownership boundary:
// - the command loop streaming motion frames
// - the telemetry loop polling actuator state
// - the supervisor that brackets both with safe-stop exchanges
// - the optional status endpoint
package motor
