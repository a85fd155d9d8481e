// Package core defines the domain model for the Orthrus intrusion detection
// engine.
//
// The core package provides:
//   - Configuration entities parsed from server configuration documents
//     (DetectionPoint, Threshold, Response, Interval, CorrelationSet)
//   - Runtime entities produced by the analysis engines
//     (Event, Attack, ResponseRecord)
//   - Interval arithmetic shared by the threshold analyzers
//
// Configuration entities form a strict tree rooted at the server
// configuration: no entity is shared between branches, and none is mutated
// after the parse that built it completes. Runtime entities are immutable
// once constructed.
package core
