// Package codec encodes and decodes the binary characteristic layouts of the
// band. Every function is pure; multi-byte integers are little-endian.
package codec
