package node

import (
	"strings"
	"time"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// LoadParameterFile reads a JSON5 parameter file, substituting ${VAR} references from the
// environment, and merges it into the node's parameters. Plain JSON is valid JSON5.
func (n *Node) LoadParameterFile(path string) error {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read parameter file %q", path)
	}
	params := map[string]any{}
	if err := json5.Unmarshal(buf, &params); err != nil {
		return errors.Wrapf(err, "failed to parse parameter file %q", path)
	}
	n.SetParameters(params)
	n.logger.Debugw("loaded parameters", "path", path, "keys", len(params))
	return nil
}

// SetParameters merges params into the node's parameters. Nested maps are merged key by key;
// anything else replaces the existing value.
func (n *Node) SetParameters(params map[string]any) {
	n.paramMu.Lock()
	mergeInto(n.params, params)
	listeners := append([]func(){}, n.listeners...)
	n.paramMu.Unlock()
	for _, l := range listeners {
		l()
	}
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeInto(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			fresh := map[string]any{}
			mergeInto(fresh, srcMap)
			v = fresh
		}
		dst[k] = v
	}
}

// SetParameter sets the value at a dotted key such as "planning_pipelines.namespace", creating
// intermediate maps as needed.
func (n *Node) SetParameter(key string, value any) {
	parts := strings.Split(key, ".")
	root := map[string]any{}
	m := root
	for _, part := range parts[:len(parts)-1] {
		next := map[string]any{}
		m[part] = next
		m = next
	}
	m[parts[len(parts)-1]] = value
	n.SetParameters(root)
}

// OnParametersChanged registers fn to be called after every change to the parameters.
func (n *Node) OnParametersChanged(fn func()) {
	n.paramMu.Lock()
	defer n.paramMu.Unlock()
	n.listeners = append(n.listeners, fn)
}

// Parameter returns the value at a dotted key.
func (n *Node) Parameter(key string) (any, bool) {
	n.paramMu.RLock()
	defer n.paramMu.RUnlock()
	return lookup(n.params, key)
}

func lookup(params map[string]any, key string) (any, bool) {
	var current any = params
	for _, part := range strings.Split(key, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

// HasParameter returns whether a value is set at the dotted key.
func (n *Node) HasParameter(key string) bool {
	_, ok := n.Parameter(key)
	return ok
}

// ParameterOr returns the value at key converted to the type of def, or def when the key is unset
// or cannot be converted. Supported types are string, bool, int, float64, []string and
// time.Duration.
func ParameterOr[T any](n *Node, key string, def T) T {
	raw, ok := n.Parameter(key)
	if !ok {
		return def
	}
	var (
		converted any
		err       error
	)
	switch any(def).(type) {
	case string:
		converted, err = cast.ToStringE(raw)
	case bool:
		converted, err = cast.ToBoolE(raw)
	case int:
		converted, err = cast.ToIntE(raw)
	case float64:
		converted, err = cast.ToFloat64E(raw)
	case []string:
		converted, err = cast.ToStringSliceE(raw)
	case time.Duration:
		converted, err = cast.ToDurationE(raw)
	default:
		v, ok := raw.(T)
		if !ok {
			err = errors.Errorf("cannot convert %T to %T", raw, def)
		}
		converted = v
	}
	if err != nil {
		n.logger.Warnw("ignoring parameter of the wrong type", "key", key, "error", err)
		return def
	}
	return converted.(T)
}

// DecodeParameters decodes the map at the dotted prefix into out using the json tags of out's
// fields. Values are converted between strings and numbers where needed. An empty prefix decodes
// every parameter; a missing prefix leaves out untouched.
func (n *Node) DecodeParameters(prefix string, out any) error {
	n.paramMu.RLock()
	defer n.paramMu.RUnlock()
	var raw any = n.params
	if prefix != "" {
		var ok bool
		if raw, ok = lookup(n.params, prefix); !ok {
			return nil
		}
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return errors.Wrapf(decoder.Decode(raw), "failed to decode parameters at %q", prefix)
}
