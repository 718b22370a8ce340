// Package eventcounter counts occurrences of named events and exposes the
// running counts through a dynamically generated introspection component.
//
// The library is built from four independent parts:
//  1. counter  - concurrent key to count registry (increment-or-create, reset)
//  2. guard    - task-scoped re-entrancy suppression for internal bookkeeping
//  3. schema   - lazily rebuilt descriptor of the current attributes
//  4. Tracker  - ingestion entry point and management adapter over 1-3
//
// A Tracker registers itself into an explicitly constructed registry.Registry
// (the host introspection server). Code that detects events either holds the
// Tracker directly or resolves it from the registry with Lookup.
//
// Counting is best-effort: NotifyEvent never fails, never blocks on I/O, and
// drops events raised from inside the tracker's own bookkeeping. The attribute
// list is eventually consistent with the counts; attribute values are always
// read live.
package eventcounter
