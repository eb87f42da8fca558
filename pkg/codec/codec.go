package codec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// AnomalyKind distinguishes unknown structural elements from unknown scalar attributes.
type AnomalyKind int

const (
	UnknownElement AnomalyKind = iota + 1
	UnknownAttribute
)

func (k AnomalyKind) String() string {
	if k == UnknownElement {
		return "element"
	}
	return "attribute"
}

// Anomaly is a non-fatal schema deviation found while decoding.
type Anomaly struct {
	Kind    AnomalyKind
	Path    string // full path, e.g. "states[1].colour"
	Name    string // last path segment
	Content string // rendered value
}

func (a Anomaly) String() string {
	return fmt.Sprintf("unknown %s %s = %q", a.Kind, a.Path, a.Content)
}

// Handlers receives anomalies as they are found. Nil fields are skipped.
type Handlers struct {
	OnUnknownElement   func(name, content string)
	OnUnknownAttribute func(name, value string)
}

// Result carries the best-effort definition and the ordered anomalies.
type Result struct {
	Definition *domain.Definition
	Anomalies  []Anomaly
}

// Codec serializes definitions.
type Codec interface {
	// Name identifies the format, e.g. "yaml".
	Name() string

	Encode(def *domain.Definition) ([]byte, error)

	// Decode parses data, reporting unknown keys through h and the result.
	Decode(data []byte, h Handlers) (*Result, error)
}

// Lookup returns the codec registered under name.
func Lookup(name string) (Codec, bool) {
	switch strings.ToLower(name) {
	case "yaml", "yml", "json":
		return YAML{}, true
	case "msgpack":
		return MsgPack{}, true
	default:
		return nil, false
	}
}

// decodeMap maps a generic document onto a Definition, collecting every key
// the schema did not consume.
func decodeMap(raw map[string]any, h Handlers) (*Result, error) {
	var def domain.Definition
	md := mapstructure.Metadata{}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &def,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}

	unused := append([]string(nil), md.Unused...)
	sort.Strings(unused)

	res := &Result{Definition: &def}
	for _, path := range unused {
		value := lookup(raw, path)
		a := Anomaly{
			Kind:    kindOf(value),
			Path:    path,
			Name:    lastSegment(path),
			Content: render(value),
		}
		res.Anomalies = append(res.Anomalies, a)

		switch a.Kind {
		case UnknownElement:
			if h.OnUnknownElement != nil {
				h.OnUnknownElement(a.Path, a.Content)
			}
		case UnknownAttribute:
			if h.OnUnknownAttribute != nil {
				h.OnUnknownAttribute(a.Path, a.Content)
			}
		}
	}
	return res, nil
}

func kindOf(v any) AnomalyKind {
	switch v.(type) {
	case map[string]any, map[any]any, []any:
		return UnknownElement
	default:
		return UnknownAttribute
	}
}

func render(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, map[any]any, []any:
		out, err := yaml.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return strings.TrimSpace(string(out))
	default:
		return fmt.Sprint(val)
	}
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.Index(path, "["); i >= 0 {
		path = path[:i]
	}
	return path
}

// lookup walks a mapstructure path such as "links[0].from.extra".
func lookup(root map[string]any, path string) any {
	var cur any = root
	for _, seg := range strings.Split(path, ".") {
		name := seg
		var indexes []int
		if i := strings.Index(seg, "["); i >= 0 {
			name = seg[:i]
			for _, part := range strings.Split(seg[i:], "[")[1:] {
				n, err := strconv.Atoi(strings.TrimSuffix(part, "]"))
				if err != nil {
					return nil
				}
				indexes = append(indexes, n)
			}
		}

		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[name]
		for _, n := range indexes {
			list, ok := cur.([]any)
			if !ok || n >= len(list) {
				return nil
			}
			cur = list[n]
		}
	}
	return cur
}
