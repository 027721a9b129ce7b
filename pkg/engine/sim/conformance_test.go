package sim_test

import (
	"testing"

	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/engine/enginetest"
	"github.com/marmos91/zcore/pkg/engine/sim"
)

func TestConformance(t *testing.T) {
	enginetest.RunConformanceSuite(t, func(t *testing.T) engine.Engine {
		eng, err := sim.New(sim.Config{})
		if err != nil {
			t.Fatalf("sim.New() failed: %v", err)
		}
		if err := eng.CreatePool(enginetest.PoolName); err != nil {
			t.Fatalf("CreatePool(%q) failed: %v", enginetest.PoolName, err)
		}
		t.Cleanup(func() {
			eng.Close()
		})
		return eng
	})
}
