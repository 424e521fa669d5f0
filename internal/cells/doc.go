// Package cells owns the input side of the fingerprint pipeline: cell
// centroid clouds and the group classifier that restricts a cloud to the
// phenotypes of one cell group or a union of groups.
//
// The group table is passed in explicitly when a Classifier is built; there
// is no package-level table to mutate.
package cells
