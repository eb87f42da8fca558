package codec

import (
	"testing"

	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func sampleDefinition() *domain.Definition {
	return &domain.Definition{
		Initial: "Idle",
		Ports:   []domain.PortDef{{Name: "in1"}, {Name: "out1"}},
		States: []domain.StateDef{
			{Name: "Idle"},
			{Name: "Running", Initial: "Warmup", Entry: []domain.ActionDef{{Kind: domain.ActionCall, Name: "log"}}},
			{Name: "Warmup", Parent: "Running"},
		},
		Transitions: []domain.TransitionDef{
			{From: "Idle", To: "Running", Event: "in1.Start", Actions: []domain.ActionDef{
				{Kind: domain.ActionSend, Port: "out1", Action: "Started", Payload: "now"},
				{Kind: domain.ActionSchedule, Event: "Warm", After: "100ms"},
			}},
			{From: "Running", To: "Idle", Event: "in1.Stop", Actions: []domain.ActionDef{
				{Kind: domain.ActionSend, Port: "out1", Action: "Gear", Payload: 7},
				{Kind: domain.ActionSend, Port: "out1", Action: "Tune", Payload: map[string]any{
					"rpm":    3000,
					"ratio":  1.5,
					"limits": []any{-40, 70000},
				}},
			}},
		},
		Links: []domain.LinkDef{
			{From: domain.LinkEnd{Machine: "A", Port: "out1"}, To: domain.LinkEnd{Machine: "B", Port: "in1"}},
		},
		Metadata: map[string]string{"author": "ops"},
	}
}

func TestCodecs_RoundTrip(t *testing.T) {
	for _, c := range []Codec{YAML{}, MsgPack{}} {
		t.Run(c.Name(), func(t *testing.T) {
			def := sampleDefinition()

			data, err := c.Encode(def)
			require.NoError(t, err)

			res, err := c.Decode(data, Handlers{})
			require.NoError(t, err)
			assert.Empty(t, res.Anomalies)
			assert.Equal(t, def, res.Definition)
		})
	}
}

func TestYAML_UnknownKeysAreAnomalies(t *testing.T) {
	doc := `
initial: Idle
colour: blue
layout:
  x: 10
  y: 20
states:
  - name: Idle
    shape: round
links:
  - from: {machine: A, port: out1, weight: 3}
    to: {machine: B, port: in1}
`
	var elements, attributes []string
	h := Handlers{
		OnUnknownElement:   func(name, content string) { elements = append(elements, name) },
		OnUnknownAttribute: func(name, value string) { attributes = append(attributes, name+"="+value) },
	}

	res, err := YAML{}.Decode([]byte(doc), h)
	require.NoError(t, err)

	assert.Equal(t, "Idle", res.Definition.Initial)
	require.Len(t, res.Definition.States, 1)
	assert.Equal(t, "Idle", res.Definition.States[0].Name)
	require.Len(t, res.Definition.Links, 1)
	assert.Equal(t, "A.out1 -> B.in1", res.Definition.Links[0].PortLink().String())

	require.Len(t, res.Anomalies, 4)
	paths := make([]string, 0, len(res.Anomalies))
	for _, a := range res.Anomalies {
		paths = append(paths, a.Path)
	}
	assert.Equal(t, []string{"colour", "layout", "links[0].from.weight", "states[0].shape"}, paths)

	assert.Equal(t, []string{"layout"}, elements)
	assert.Equal(t, []string{"colour=blue", "links[0].from.weight=3", "states[0].shape=round"}, attributes)

	layout := res.Anomalies[1]
	assert.Equal(t, UnknownElement, layout.Kind)
	assert.Equal(t, "layout", layout.Name)
	assert.Contains(t, layout.Content, "x: 10")

	assert.Equal(t, "weight", res.Anomalies[2].Name)
}

func TestYAML_AcceptsJSON(t *testing.T) {
	doc := `{"initial": "On", "states": [{"name": "On"}], "ports": [{"name": "p"}]}`
	res, err := YAML{}.Decode([]byte(doc), Handlers{})
	require.NoError(t, err)
	assert.Equal(t, "On", res.Definition.Initial)
	assert.Equal(t, []domain.PortDef{{Name: "p"}}, res.Definition.Ports)
}

func TestYAML_MalformedIsAnError(t *testing.T) {
	_, err := YAML{}.Decode([]byte("initial: [unterminated"), Handlers{})
	assert.Error(t, err)

	_, err = YAML{}.Decode([]byte("- just\n- a list\n"), Handlers{})
	assert.Error(t, err)
}

func TestYAML_EmptyDocument(t *testing.T) {
	res, err := YAML{}.Decode(nil, Handlers{})
	require.NoError(t, err)
	assert.Empty(t, res.Definition.Initial)
	assert.Empty(t, res.Anomalies)
}

func TestMsgPack_UnknownKeys(t *testing.T) {
	type future struct {
		Initial  string           `msgpack:"initial"`
		States   []map[string]any `msgpack:"states"`
		Priority int              `msgpack:"priority"`
	}
	raw, err := msgpack.Marshal(future{
		Initial:  "Idle",
		States:   []map[string]any{{"name": "Idle"}},
		Priority: 7,
	})
	require.NoError(t, err)

	res, err := MsgPack{}.Decode(raw, Handlers{})
	require.NoError(t, err)
	assert.Equal(t, "Idle", res.Definition.Initial)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, "priority", res.Anomalies[0].Path)
	assert.Equal(t, "7", res.Anomalies[0].Content)
	assert.Equal(t, UnknownAttribute, res.Anomalies[0].Kind)
}

func TestMsgPack_NumbersMatchYAML(t *testing.T) {
	got := normalize(map[string]any{
		"small":  int8(7),
		"wide":   uint16(3000),
		"neg":    int32(-40),
		"big":    uint64(1 << 40),
		"ratio":  float32(0.5),
		"nested": map[any]any{"rpm": uint16(3000)},
		"list":   []any{uint8(1), "x"},
	})
	assert.Equal(t, map[string]any{
		"small":  7,
		"wide":   3000,
		"neg":    -40,
		"big":    1 << 40,
		"ratio":  0.5,
		"nested": map[string]any{"rpm": 3000},
		"list":   []any{1, "x"},
	}, got)
}

func TestLookup(t *testing.T) {
	c, ok := Lookup("YML")
	require.True(t, ok)
	assert.Equal(t, "yaml", c.Name())

	c, ok = Lookup("msgpack")
	require.True(t, ok)
	assert.Equal(t, "msgpack", c.Name())

	_, ok = Lookup("xml")
	assert.False(t, ok)
}

func TestAnomaly_String(t *testing.T) {
	a := Anomaly{Kind: UnknownAttribute, Path: "states[0].shape", Name: "shape", Content: "round"}
	assert.Equal(t, `unknown attribute states[0].shape = "round"`, a.String())
}
