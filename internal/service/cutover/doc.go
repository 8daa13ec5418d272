// Package cutover performs the atomic swap of the live application root
// from one release to another via a staged symlink and rename, and reports
// whether a swap actually occurred.
package cutover
