// Package config reads stage configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Getenv returns the value of the environment variable, or fallback when
// it is unset or empty.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Int returns the environment variable parsed as an integer, or fallback
// when it is unset, empty, or not a number.
func Int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Prefix returns the environment variable normalized to end with a single
// trailing slash, so callers can concatenate object keys directly.
func Prefix(key, fallback string) string {
	v := Getenv(key, fallback)
	if v == "" {
		return v
	}
	return strings.TrimRight(v, "/") + "/"
}
