package schema

import (
	"bytes"
	"encoding/json"
)

// MarshalOrdered serializes a Result with keys in the Definition's declared
// order, so re-running the pipeline yields byte-identical output.
func MarshalOrdered(def *Definition, res Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeObject(&buf, def.Fields, res); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func writeObject(buf *bytes.Buffer, fields []Field, m map[string]any) error {
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := writeValue(buf, f, m[f.Name]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeValue(buf *bytes.Buffer, f Field, v any) error {
	if v == nil {
		buf.WriteString("null")
		return nil
	}
	switch f.Type {
	case TypeObject:
		if m, ok := v.(map[string]any); ok {
			return writeObject(buf, f.Fields, m)
		}
	case TypeList:
		if arr, ok := v.([]any); ok {
			buf.WriteByte('[')
			for i, item := range arr {
				if i > 0 {
					buf.WriteByte(',')
				}
				if err := writeValue(buf, *f.Items, item); err != nil {
					return err
				}
			}
			buf.WriteByte(']')
			return nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
