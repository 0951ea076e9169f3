package codec

import (
	"bytes"
	"encoding/json"
	"sort"
)

// orderedObject accumulates JSON object fields while preserving insertion
// order for the leading keys explicitly set via set, and sorting any
// remaining keys (those added via setRaw) for determinism. This is how the codec guarantees "kind"
// (and "taskId" for events) serialize as the first properties, per spec
// section 6's wire format rule.
type orderedObject struct {
	keys   []string
	values map[string]json.RawMessage
}

func (o *orderedObject) set(key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		// Only called with trivially marshalable values (strings, bools);
		// a failure here indicates a programmer error in this package.
		raw = []byte("null")
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.setRaw(key, raw)
}

func (o *orderedObject) setRaw(key string, raw json.RawMessage) {
	if o.values == nil {
		o.values = make(map[string]json.RawMessage)
	}
	o.values[key] = raw
}

func (o *orderedObject) marshal() (json.RawMessage, error) {
	leading := append([]string(nil), o.keys...)
	seen := make(map[string]bool, len(leading))
	for _, k := range leading {
		seen[k] = true
	}
	var trailing []string
	for k := range o.values {
		if !seen[k] {
			trailing = append(trailing, k)
		}
	}
	sort.Strings(trailing)

	var buf bytes.Buffer
	buf.WriteByte('{')
	allKeys := append(leading, trailing...)
	for i, k := range allKeys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(k)
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(o.values[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
