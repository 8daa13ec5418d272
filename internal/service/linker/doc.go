// Package linker reconciles the declared set of persistent shared resources
// (uploads, sessions, logs) into a freshly cut-over release tree: ensure the
// source exists, clear the destination, and relink it. Destinations are
// always fresh links, never merged content.
package linker
