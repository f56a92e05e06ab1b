package models

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestMapProviderStateTable(t *testing.T) {
	cases := []struct {
		in   ProviderState
		want DeploymentStatus
	}{
		{ProviderStateQueued, DeploymentStatusQueued},
		{ProviderStateBuilding, DeploymentStatusBuilding},
		{ProviderStateReady, DeploymentStatusRunning},
		{ProviderStateError, DeploymentStatusFailed},
		{ProviderStateCanceled, DeploymentStatusStopped},
		{ProviderState("INITIALIZING"), DeploymentStatusPending},
		{ProviderState(""), DeploymentStatusPending},
	}
	for _, tc := range cases {
		if got := MapProviderState(tc.in); got != tc.want {
			t.Errorf("MapProviderState(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestMapProviderStateTotality(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	valid := map[DeploymentStatus]bool{
		DeploymentStatusPending:  true,
		DeploymentStatusQueued:   true,
		DeploymentStatusBuilding: true,
		DeploymentStatusRunning:  true,
		DeploymentStatusStopped:  true,
		DeploymentStatusFailed:   true,
	}

	properties.Property("every input maps to a defined status", prop.ForAll(
		func(raw string) bool {
			return valid[MapProviderState(ProviderState(raw))]
		},
		gen.AnyString(),
	))

	properties.Property("unrecognized states map to pending", prop.ForAll(
		func(raw string) bool {
			state := ProviderState(raw)
			switch state {
			case ProviderStateQueued, ProviderStateBuilding, ProviderStateReady,
				ProviderStateError, ProviderStateCanceled:
				return true
			}
			return MapProviderState(state) == DeploymentStatusPending
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
