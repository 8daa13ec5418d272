// Package journal persists a bounded history of deployment runs to a JSON
// file under the releases root. Each orchestrator run appends exactly one
// record, on success and on failure alike, for operator forensics.
package journal
