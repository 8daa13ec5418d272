// Package migrator invokes the application's database tooling after cutover:
// first-time setup, the ordered schema-upgrade sequence, enforcement of
// baseline configuration rows in MySQL, and cache invalidation.
package migrator
