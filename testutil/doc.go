// Package testutil provides lifecycle helpers for components used as test
// doubles. Subpackage fakeplane is an in-memory pipeline control plane.
//
//	func TestDeploy(t *testing.T) {
//	    plane := fakeplane.New()
//	    testutil.T(t).Setup(plane)
//	    // plane is stopped when the test ends
//	}
package testutil
