package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pithecene-io/uproot/types"
)

// MalformedEventError reports a message that could not be decoded into a
// RunEvent. Malformed events are skipped; they never end a run.
type MalformedEventError struct {
	// Type is the message discriminator, if it was readable.
	Type string
	// Field is the offending field.
	Field string
	// Reason describes the problem ("missing", "expected string", ...).
	Reason string
}

func (e *MalformedEventError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("malformed event: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed %s event: %s %s", e.Type, e.Field, e.Reason)
}

// IsMalformedEvent returns true if err is a *MalformedEventError.
func IsMalformedEvent(err error) bool {
	var me *MalformedEventError
	return errors.As(err, &me)
}

// fields wraps a message map with typed accessors. The first error
// encountered is retained and reported by err.
type fields struct {
	typ string
	m   map[string]any
	bad *MalformedEventError
}

func (f *fields) fail(field, reason string) {
	if f.bad == nil {
		f.bad = &MalformedEventError{Type: f.typ, Field: field, Reason: reason}
	}
}

func (f *fields) err() error {
	if f.bad == nil {
		return nil
	}
	return f.bad
}

func (f *fields) has(key string) bool {
	v, ok := f.m[key]
	return ok && v != nil
}

func (f *fields) str(key string, required bool) string {
	v, ok := f.m[key]
	if !ok || v == nil {
		if required {
			f.fail(key, "missing")
		}
		return ""
	}
	s, ok := v.(string)
	if !ok {
		f.fail(key, "expected string")
		return ""
	}
	if required && s == "" {
		f.fail(key, "empty")
	}
	return s
}

func (f *fields) int64(key string, required bool) (int64, bool) {
	v, ok := f.m[key]
	if !ok || v == nil {
		if required {
			f.fail(key, "missing")
		}
		return 0, false
	}
	n, ok := asInt64(v)
	if !ok {
		f.fail(key, "expected integer")
		return 0, false
	}
	return n, true
}

func (f *fields) boolean(key string, required bool, def bool) bool {
	v, ok := f.m[key]
	if !ok || v == nil {
		if required {
			f.fail(key, "missing")
		}
		return def
	}
	b, ok := asBool(v)
	if !ok {
		f.fail(key, "expected boolean")
		return def
	}
	return b
}

// Decode converts one worker message into a typed RunEvent.
// Unknown discriminators yield *types.OtherEvent. Missing optional fields
// take their documented defaults; missing required fields or wrong types
// yield *MalformedEventError.
func Decode(msg map[string]any) (types.RunEvent, error) {
	if msg == nil {
		return nil, &MalformedEventError{Field: "message", Reason: "empty"}
	}
	rawType, ok := msg["type"]
	if !ok || rawType == nil {
		return nil, &MalformedEventError{Field: "type", Reason: "missing"}
	}
	typ, ok := rawType.(string)
	if !ok {
		return nil, &MalformedEventError{Field: "type", Reason: "expected string"}
	}

	f := &fields{typ: typ, m: msg}
	raw := types.RawPayload{Raw: msg}

	var ev types.RunEvent
	switch types.EventKind(typ) {
	case types.EventKickoff:
		ev = &types.KickoffEvent{RawPayload: raw, Target: f.str("target", false)}
	case types.EventStage:
		ev = decodeStage(f, raw)
	case types.EventArtifacts:
		ev = decodeArtifacts(f, raw)
	case types.EventSelection:
		selected, _ := f.int64("selected", true)
		total, _ := f.int64("total", true)
		ev = &types.SelectionEvent{RawPayload: raw, Selected: int(selected), Total: int(total)}
	case types.EventArtifactResult:
		ev = &types.ArtifactResultEvent{
			RawPayload: raw,
			ArtifactID: f.str("artifactId", true),
			Success:    f.boolean("success", true, false),
			Error:      f.str("error", false),
		}
	case types.EventSummary:
		ev = decodeSummary(f, raw)
	case types.EventAwaitingSelection:
		ev = &types.AwaitingSelectionEvent{RawPayload: raw}
	default:
		level, _ := msg["level"].(string)
		message, _ := msg["message"].(string)
		ev = &types.OtherEvent{
			RawPayload: raw,
			Type:       typ,
			Level:      types.ParseLogLevel(level),
			Message:    message,
		}
	}

	if err := f.err(); err != nil {
		return nil, err
	}
	return ev, nil
}

// stageReserved lists stage event keys that are not auxiliary counters.
var stageReserved = map[string]bool{
	"type": true, "stage": true, "name": true, "status": true, "exitCode": true,
}

func decodeStage(f *fields, raw types.RawPayload) *types.StageEvent {
	key := "stage"
	if !f.has(key) && f.has("name") {
		key = "name"
	}
	name := f.str(key, true)
	stage, known := types.ParseStage(name)

	var status types.StageTransition
	switch s := strings.ToLower(f.str("status", true)); s {
	case "started", "start", "running":
		status = types.StageStarted
	case "completed", "complete", "done":
		status = types.StageCompletedEvent
	case "":
	default:
		f.fail("status", fmt.Sprintf("unknown value %q", s))
	}

	ev := &types.StageEvent{
		RawPayload: raw,
		Name:       name,
		Stage:      stage,
		Known:      known,
		Status:     status,
		Counters:   map[string]int64{},
	}
	if code, ok := f.int64("exitCode", false); ok {
		c := int(code)
		ev.ExitCode = &c
	}
	for k, v := range f.m {
		if stageReserved[k] {
			continue
		}
		if n, ok := asInt64(v); ok {
			ev.Counters[k] = n
		}
	}
	return ev
}

func decodeArtifacts(f *fields, raw types.RawPayload) *types.ArtifactsEvent {
	ev := &types.ArtifactsEvent{RawPayload: raw}
	v, ok := f.m["items"]
	if !ok || v == nil {
		f.fail("items", "missing")
		return ev
	}
	list, ok := v.([]any)
	if !ok {
		f.fail("items", "expected array")
		return ev
	}

	ev.Items = make([]types.ArtifactSpec, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			ev.Dropped++
			continue
		}
		spec, ok := decodeArtifactItem(obj)
		if !ok {
			ev.Dropped++
			continue
		}
		ev.Items = append(ev.Items, spec)
	}
	return ev
}

// decodeArtifactItem builds an ArtifactSpec from one items[] entry.
// Items without an id or path are rejected. Odd-typed optional fields fall
// back to their defaults rather than rejecting the whole event.
func decodeArtifactItem(obj map[string]any) (types.ArtifactSpec, bool) {
	id, _ := obj["id"].(string)
	path, _ := obj["path"].(string)
	if strings.TrimSpace(id) == "" || strings.TrimSpace(path) == "" {
		return types.ArtifactSpec{}, false
	}

	spec := types.ArtifactSpec{
		ID:              id,
		Path:            path,
		Group:           types.DefaultArtifactGroup,
		Kind:            types.DefaultArtifactKind,
		DisplayName:     id,
		DefaultSelected: true,
	}
	if s, ok := obj["group"].(string); ok && s != "" {
		spec.Group = s
	}
	if s, ok := obj["type"].(string); ok && s != "" {
		spec.Kind = s
	}
	if s, ok := obj["displayName"].(string); ok && s != "" {
		spec.DisplayName = s
	}
	if n, ok := asInt64(obj["sizeBytes"]); ok && n > 0 {
		spec.SizeBytes = n
	}
	if b, ok := asBool(obj["requiresElevation"]); ok {
		spec.RequiresElevatedPrivilege = b
	}
	if b, ok := asBool(obj["defaultSelected"]); ok {
		spec.DefaultSelected = b
	}
	return spec, true
}

func decodeSummary(f *fields, raw types.RawPayload) *types.SummaryEvent {
	removed, _ := f.int64("removed", true)
	skipped, _ := f.int64("skipped", true)
	failures, _ := f.int64("failures", true)
	freed, _ := f.int64("freedBytes", true)

	ev := &types.SummaryEvent{
		RawPayload: raw,
		Removed:    int(removed),
		Skipped:    int(skipped),
		Failures:   int(failures),
		FreedBytes: max(freed, 0),
		LogPath:    f.str("logPath", false),
	}
	// An unparsable timestamp is not worth dropping the terminal event for;
	// the controller substitutes the receive time.
	if ts := f.str("timestamp", false); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.Timestamp = t.UTC()
		}
	}
	return ev
}

// asInt64 coerces the numeric representations produced by encoding/json
// (json.Number, float64) and msgpack (sized ints) to int64. Numeric strings
// are accepted. Fractional values are rejected.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return clampUint(uint64(n))
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return clampUint(n)
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if fl, err := n.Float64(); err == nil {
			return floatToInt(fl)
		}
		return 0, false
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func clampUint(n uint64) (int64, bool) {
	if n > math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		return false, false
	}
}
