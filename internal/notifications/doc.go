// Package notifications pushes operator alerts over ntfy. Standing
// conditions such as configuration gaps are deduplicated within a
// configurable window so a channel that cannot be scheduled does not
// page the operator every poll cycle.
//
// All scheduling and runtime code depends only on the Service interface;
// a noop implementation stands in when no topic is configured.
package notifications
