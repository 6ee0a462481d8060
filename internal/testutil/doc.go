// Package testutil holds helpers shared by plan rewriting tests: building
// constant columns, writing partitioned plan fragments, and comparing the
// evaluated results of a plan before and after a rewrite.
package testutil
