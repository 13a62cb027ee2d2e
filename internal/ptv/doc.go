// Package ptv holds the shared data model for Lagrangian particle tracking.
//
// Responsibilities: plain value types that flow between the tracking
// stages (detections, observations, identities, output rows) and the
// domain error values. No tracking logic lives here.
//
// Stage packages, leaves first:
//
//	uid       running UID allocator
//	snapshot  per-frame observation store
//	linking   frame-to-frame association and velocity write-back
//	tracks    track assembly, acceleration and repair
//	pipeline  end-to-end run wiring the stages together
//
// Dependency rule: stage packages may depend on ptv and on packages
// listed above them, never below. No SQL/database code is allowed in
// ptv or the stage packages.
package ptv
