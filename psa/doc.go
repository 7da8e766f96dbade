// Package psa builds the input tables of a national-resolution power-system
// model: buses (countries), generators and storage units aggregated per
// carrier from ENTSO-E installed capacity, loads, and cross-border links.
//
// The resulting Network is a plain data structure consumed by the dispatch
// package; it carries no solver state of its own.
package psa
