// Package integrity decides whether a downloaded object archive still matches
// the digests recorded in the catalog.
//
// The checker opens the zip archive, then walks the catalogued files in order.
// Each file is hashed with its own algorithm since older entries may predate a
// change of default digest. The first missing path or mismatched digest ends
// the walk with a corrupted verdict. Digests are hex and compared without
// regard to case.
package integrity
