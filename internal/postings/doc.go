// Package postings implements the block-paginated posting format of an
// impact-ordered inverted index.
//
// Every term's posting list is sorted by doc id and cut into pages of a
// fixed number of records. Doc ids and impact values live in two flat
// little-endian streams; the header (IndexInfo) records, per page, the
// stream offsets, the record count, the largest value and the last doc id.
// Those per-page maxima let a Cursor bound the score of a range of
// documents, and skip it, without decoding a single record.
package postings
