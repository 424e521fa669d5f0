// Package persistence computes persistence diagrams of filtered simplicial
// complexes with the standard boundary-matrix reduction over GF(2).
//
// Dimension 0 pairs track connected components, dimension 1 independent
// loops and dimension 2 enclosed voids of the 2-skeleton. Essential classes
// carry the finite sentinel EssentialDeath.
package persistence
