// Package acad manages the single live AutoCAD automation endpoint.
//
// It covers three concerns:
//   - resolving an endpoint under ambiguous discovery conditions (attach to a
//     running instance, class-based activation, or an explicit launch),
//   - retrying automation calls that fail with the transient "callee busy"
//     COM condition,
//   - dispatching command text through the endpoint with idle-detection and
//     timeout semantics.
//
// The package treats command and output text as opaque payloads; it has no
// understanding of CAD semantics. All calls into one endpoint are serialized
// through the owning Bridge.
package acad
