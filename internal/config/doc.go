// Package config defines the YAML deployment manifest consumed by the
// orchestrator and provides helpers to load and validate it.
//
// Secrets (database password, crypto key) are overlaid from the process
// environment, optionally seeded from a .env file next to the manifest,
// so they never have to live in the manifest itself.
package config
