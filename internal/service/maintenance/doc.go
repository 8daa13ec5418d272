// Package maintenance controls the maintenance window: a flag file the
// web application consults and the suspend/resume state of the cron jobs
// declared in the manifest. Entry and exit follow a strict order so that
// scheduled jobs can never run against a half-released tree.
package maintenance
