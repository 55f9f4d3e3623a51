// Package config provides configuration structures and utilities for credaudit.
// It defines the audit options built from CLI flags, their defaults and
// validation, and the optional YAML policy file that supplies wordlists,
// linked-identity settings and exclusions.
package config
