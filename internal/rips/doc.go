// Package rips builds filtered Vietoris-Rips complexes (up to triangles)
// from 2-D cell centroid clouds.
//
// Neighbour search uses a uniform grid whose cell side equals the maximum
// edge length, the same bucketing the tracker's DBSCAN uses for region
// queries. Higher simplices are cliques of already-included edges, so the
// filtration is monotone by construction.
package rips
