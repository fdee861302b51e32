// Package clock provides the single authoritative time source for the
// broadcast system.
//
// Every component that needs "now" — horizon extension, broadcast-day
// rollover, mid-asset resume offsets — takes a Clock as an explicit
// dependency instead of calling time.Now directly. That keeps scheduling
// and playout on one shared notion of station time and makes timing
// behavior reproducible in tests via Fake.
package clock
