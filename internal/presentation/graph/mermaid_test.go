package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/hsmgrid/internal/presentation/graph"
	"github.com/aretw0/hsmgrid/internal/testutils"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/ports"
	"github.com/aretw0/hsmgrid/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lamp() *domain.Definition {
	return &domain.Definition{
		Initial: "Off",
		Ports:   []domain.PortDef{{Name: "out"}},
		States: []domain.StateDef{
			{Name: "Off"},
			{Name: "On", Initial: "Dim"},
			{Name: "Dim", Parent: "On"},
			{Name: "Bright", Parent: "On"},
		},
		Transitions: []domain.TransitionDef{
			{From: "Off", To: "On", Event: "toggle", Actions: []domain.ActionDef{
				{Kind: domain.ActionSend, Port: "out", Action: "Lit"},
			}},
			{From: "Dim", To: "Bright", Event: `press "hard"`},
		},
	}
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		overlay  *graph.GraphOverlay
		contains []string
	}{
		{
			name: "Initial States Are Circles",
			contains: []string{
				"Off((\"Off\"))",
				"Dim((\"Dim\"))",
				"Bright[\"Bright\"]",
			},
		},
		{
			name: "Composite States Are Subgraphs",
			contains: []string{
				"    subgraph On[\"On\"]\n",
				"        Dim((\"Dim\"))\n",
				"    end\n",
			},
		},
		{
			name: "Transition Labels",
			contains: []string{
				`Off -- "toggle / out!Lit" --> On`,
				`Dim -- "press 'hard'" --> Bright`,
			},
		},
		{
			name:    "Overlay",
			overlay: &graph.GraphOverlay{Configuration: []string{"On", "Dim"}},
			contains: []string{
				"class On active;",
				"class Dim current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(lamp(), tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
		})
	}
}

func TestGenerateTopology(t *testing.T) {
	r := registry.New()
	air := testutils.NewFakeMachine("Air", "FuelMixture")
	fuel := testutils.NewFakeMachine("Fuel-Mixture", "in")
	coil := testutils.NewFakeMachine("Coil", "out")
	for _, m := range []*testutils.FakeMachine{air, fuel, coil} {
		require.NoError(t, r.RegisterInstance(m))
	}
	r.RegisterPortLink(domain.NewPortLink("Coil", "out", "Fuel-Mixture", "in"))

	got := graph.GenerateTopology([]ports.Machine{air, fuel, coil}, r)
	assert.Contains(t, got, "Fuel_Mixture[\"Fuel-Mixture\"]")
	assert.Contains(t, got, "Coil -- \"out → in\" --> Fuel_Mixture")
	assert.Equal(t, 1, strings.Count(got, "-->"))
}
