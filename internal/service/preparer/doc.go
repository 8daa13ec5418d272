// Package preparer materializes release directories: it locates already
// prepared releases, extracts artifacts through the system tar, fixes
// ownership, renders release-scoped configuration, and stamps the prepared
// marker that makes a release eligible for cutover.
package preparer
