// Package stance scores text against stance categories by embedding
// similarity.
//
// Each category is described by reference statements. The category centroid
// is the mean embedding of its statements; a text's score for a category is
// its cosine similarity to that centroid, with negative similarities clamped
// to zero. Scores are normalized into a probability distribution, uniform when
// every similarity is zero or the text is blank.
package stance
