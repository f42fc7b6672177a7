// Package catalog holds container descriptors: the per-container list of
// asset records, its lazily built content-id lookup table, and the naming
// rules that map records to deployed package files.
//
// Catalogs are persisted as YAML, TOML or JSON files. LoadDir merges every
// catalog file under a directory in sorted path order, so descriptor order
// (and therefore duplicate resolution across descriptors) is deterministic.
package catalog
