package storage

import "encoding/json"

// Normalize returns a copy of doc with every json.Number, including those in
// nested maps and slices, converted to int64 when it is integral and to
// float64 otherwise. Decoders that use UseNumber produce json.Number, which
// backends that encode by reflect kind would store as a string.
func Normalize(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case Document:
		return Normalize(t)
	case map[string]interface{}:
		return map[string]interface{}(Normalize(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	}
	return v
}
