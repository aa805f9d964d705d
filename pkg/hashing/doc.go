// Package hashing provides the deterministic string hashes used to name
// alias index entries.
//
// Hashes are hex encoded so they are safe as file names and KV keys.
// BLAKE2b-256 is the default; SHA-256 is available for deployments that
// need FIPS-approved primitives.
package hashing
