// Package domain defines the core domain models for tillvault.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling. All money amounts are
// integer cents and all timestamps are Unix milliseconds.
package domain
