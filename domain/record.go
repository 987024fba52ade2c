package domain

import (
	"encoding/json"
	"reflect"
	"time"
)

// Record is the JSON-shaped payload owned by a wrapper.
type Record map[string]any

// Reserved record fields.
const (
	FieldID         = "_id"
	FieldType       = "type"
	FieldTTL        = "ttl"
	FieldCreated    = "_cts"
	FieldUpdated    = "_uts"
	FieldPublished  = "_pts"
	FieldEdited     = "_ets"
	FieldExpires    = "_xts"
	FieldDeleted    = "_dts"
	FieldVisibility = "_vis"
	FieldOwner      = "_oid"
	FieldCreator    = "_cid"
	FieldACL        = "_acl"
	FieldTags       = "_tags"
	FieldRelTags    = "_rtags"
	FieldVars       = "_vars"
	FieldPrevious   = "_pvid"
	FieldNext       = "_nvid"
)

// Visibility scopes.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
	VisibilityGroup   = "group"
	VisibilityOwner   = "owner"
)

// ID returns the identifier field or "".
func (r Record) ID() string {
	s, _ := r[FieldID].(string)
	return s
}

// TypeTag returns the type tag field or "".
func (r Record) TypeTag() string {
	s, _ := r[FieldType].(string)
	return s
}

// Clone returns a deep copy. A nil record clones to nil.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = deepCopy(v)
	}
	return out
}

// DecodeRecord parses a JSON object into a Record.
func DecodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, WrapError(ErrCodeInvalid, "decode record", err)
	}
	if rec == nil {
		return nil, ErrInvalidRecord
	}
	return rec, nil
}

// NowMillis converts t to milliseconds since the epoch, the unit used by record timestamps.
func NowMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case Record:
		return val.Clone()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case map[string][]string:
		out := make(map[string][]string, len(val))
		for k, item := range val {
			out[k] = append([]string(nil), item...)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out
	default:
		return v
	}
}

// sameValue reports whether a write of b over a would be a no-op.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	// Value.Comparable also inspects dynamic values held in interface fields.
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Comparable() && vb.Comparable() {
		if va.Type() != vb.Type() {
			fa, okA := toFloat(a)
			fb, okB := toFloat(b)
			return okA && okB && fa == fb
		}
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	f, ok := toFloat(v)
	return int64(f), ok
}

func toStrings(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
