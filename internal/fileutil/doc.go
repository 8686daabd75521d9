// Package fileutil wraps the file operations baton persists through (read,
// write, mkdir, list, stat, copy, delete, JSON parse and serialize) in the
// bounded retry loop from package retry. Writes are atomic: data lands in a
// sibling temp file that is renamed over the destination.
package fileutil
