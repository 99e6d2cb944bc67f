// Package textutil turns titles and identifiers into file-system-safe names.
package textutil
