// Package aggregates declares the study plan aggregate: the write operations that own a
// learner's plan days, their inputs and results, and the coded errors they return.
package aggregates
