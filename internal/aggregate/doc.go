// Package aggregate joins transcript segments, speaker intervals, and stance
// scores by timestamp into the ordered annotated segments of a Document.
//
// Speaker intervals attach to a segment when they cover more than
// MinOverlapFraction of it. Duplicate text produced by overlapping chunks is
// resolved by a configurable policy, and segments without a stance score are
// either an error or recorded as missing.
package aggregate
