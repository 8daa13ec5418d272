// Package reloader restarts the application runtime process when a cutover
// actually changed the live release, and verifies the process came back.
package reloader
