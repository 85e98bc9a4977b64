// Package shop assembles the full TillVault stack for one shop: the
// record store, the intent log, the snapshot engine, backup rotation
// with the debounced scheduler, and the domain services on top.
//
// Open wires everything together, runs the startup recovery cascade
// when the primary store fails to come up, and compensates intents
// left incomplete by a crash. Close tears the stack down in reverse.
package shop
