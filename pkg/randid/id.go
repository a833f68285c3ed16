// Package randid generates short random identifiers for temporary files.
package randid

import (
	"math/rand/v2"
	"strings"
)

const chars = "abcdefghijklmnopqrstuvwxyz0123456789"

// Generate creates a random lowercase alphanumeric ID of the given length.
func Generate(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = chars[rand.IntN(len(chars))]
	}
	return string(b)
}

// Filename returns prefix-<id>.ext. A leading dot on ext is optional.
func Filename(prefix, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	name := prefix + "-" + Generate(8)
	if ext == "" {
		return name
	}
	return name + "." + ext
}
