// Package version reports build information for the pipedeploy binary.
package version
