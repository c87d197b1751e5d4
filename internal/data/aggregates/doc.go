// Package aggregates implements the study plan aggregate on top of the table repos.
//
// Every write runs in one transaction opened here, guarded by row versions, and is
// replayed a bounded number of times after conflicts or transient storage failures.
package aggregates
