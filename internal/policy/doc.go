// Package policy holds the static tables notification payloads are derived
// from: priority levels, the seeded categories, built-in action templates
// and built-in notification templates.
//
// Every accessor returns a fresh copy; callers may mutate results freely.
package policy
