package codec

import (
	"bytes"
	"fmt"
	"math"

	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// MsgPack is a compact binary definition format. Field names match the YAML
// format so both decode through the same schema.
type MsgPack struct{}

func (MsgPack) Name() string { return "msgpack" }

func (MsgPack) Encode(def *domain.Definition) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("yaml")
	if err := enc.Encode(def); err != nil {
		return nil, fmt.Errorf("failed to pack definition: %w", err)
	}
	return buf.Bytes(), nil
}

func (MsgPack) Decode(data []byte, h Handlers) (*Result, error) {
	var raw map[string]any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unpack definition: %w", err)
	}
	return decodeMap(normalize(raw).(map[string]any), h)
}

// normalize widens the sized numbers msgpack yields to int and float64, the
// types the YAML codec produces, so payloads look the same whatever the
// codec.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	case int8:
		return int(x)
	case int16:
		return int(x)
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint8:
		return int(x)
	case uint16:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		if x > math.MaxInt {
			return x
		}
		return int(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}
