// Package timeline derives schedule occurrences and lifecycle statuses from
// course and assignment records. Every function is pure: the current instant is
// always passed in, inputs are never mutated and nothing is cached.
package timeline
