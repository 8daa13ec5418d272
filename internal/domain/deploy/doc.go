// Package deploy holds the deployment domain model: releases, run modes,
// shared-resource and scheduled-job declarations, enforced settings, and
// the sentinel error kinds used to classify pipeline failures.
package deploy
