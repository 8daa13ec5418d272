// Package common holds helpers shared by the deployment services: the
// external command runner (exit-code contract), actor detection for the
// journal, and ownership utilities.
package common
