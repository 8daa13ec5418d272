// Package deployer orchestrates the release pipeline: locate or materialize
// the target release, enter the maintenance window, cut the live root over,
// relink shared resources, restart the runtime when the target changed, run
// migrations, and exit maintenance. A lock file under the releases root
// keeps runs exclusive per host; every run appends one journal record.
//
// The pipeline fails closed: before cutover a failure leaves the live
// release untouched, from cutover onward a failure leaves the system in
// maintenance for the operator or a re-run to resolve.
package deployer
