// Package batch runs the fingerprint pipeline over many samples.
//
// A batch has two rounds. The diagram round turns every (sample, selection)
// into a persistence diagram. The distance round compares every pair of
// diagrams of one selection, dimension and metric and assembles a symmetric
// matrix. Work in both rounds is spread over a bounded worker pool; results
// come back over a channel to a single reducer, so the outcome does not
// depend on the number of workers or the order tasks finish in.
package batch
