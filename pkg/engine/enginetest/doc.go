// Package enginetest provides a conformance test suite for engine
// implementations.
//
// Every engine backend should pass these tests. The suite verifies the
// boundary-call contract an engine must honor: status codes, per-target
// error maps, batch atomicity, reply buffer handling including the
// ENOMEM retry protocol, and the framed record stream of the list
// operation.
//
// Usage:
//
//	func TestConformance(t *testing.T) {
//	    enginetest.RunConformanceSuite(t, func(t *testing.T) engine.Engine {
//	        eng, err := sim.New(sim.Config{})
//	        ...
//	        return eng
//	    })
//	}
//
// The factory provisions a fresh engine holding one empty pool named
// PoolName and registers teardown with t.Cleanup.
package enginetest
