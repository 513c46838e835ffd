// Package hash holds the CRC32C (Castagnoli) helpers that guard index files.
// The header checksums itself, its term table and both posting streams.
package hash
