// Package log carries slog records across the module boundary.
//
// The calling side encodes each record as a LogMessageWire JSON document and
// hands it to the host's log_message export; Forward replays it into a host
// slog.Logger with its original level, time and attributes.
package log

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// LogMessageWire is the JSON wire format for a log message crossing the boundary.
type LogMessageWire struct {
	Timestamp time.Time     `json:"timestamp"`
	Attrs     []LogAttrWire `json:"attrs,omitempty"`
	Level     string        `json:"level"`
	Message   string        `json:"message"`
}

// LogAttrWire represents a single slog attribute for wire transfer.
type LogAttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"`  // "string", "int64", "uint64", "bool", "float64", "time", "duration", "error", "json", "group", "any"
	Value string `json:"value"` // String representation of the value
}

// FromRecord converts a slog.Record to its wire form.
func FromRecord(record slog.Record) LogMessageWire {
	msg := LogMessageWire{
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}
	record.Attrs(func(attr slog.Attr) bool {
		msg.Attrs = append(msg.Attrs, toLogAttrWire(attr))
		return true
	})
	return msg
}

// Record rebuilds a slog.Record. Unknown levels become Info and a missing
// timestamp becomes the current time.
func (m LogMessageWire) Record() slog.Record {
	var level slog.Level
	if err := level.UnmarshalText([]byte(m.Level)); err != nil {
		level = slog.LevelInfo
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	record := slog.NewRecord(ts, level, m.Message, 0)
	for _, a := range m.Attrs {
		record.AddAttrs(fromLogAttrWire(a))
	}
	return record
}

// toLogAttrWire converts a slog.Attr to LogAttrWire.
func toLogAttrWire(attr slog.Attr) LogAttrWire {
	wire := LogAttrWire{
		Key: attr.Key,
	}
	attr.Value = attr.Value.Resolve()

	switch attr.Value.Kind() {
	case slog.KindString:
		wire.Type = "string"
		wire.Value = attr.Value.String()
	case slog.KindInt64:
		wire.Type = "int64"
		wire.Value = strconv.FormatInt(attr.Value.Int64(), 10)
	case slog.KindUint64:
		wire.Type = "uint64"
		wire.Value = strconv.FormatUint(attr.Value.Uint64(), 10)
	case slog.KindBool:
		wire.Type = "bool"
		wire.Value = strconv.FormatBool(attr.Value.Bool())
	case slog.KindFloat64:
		wire.Type = "float64"
		wire.Value = strconv.FormatFloat(attr.Value.Float64(), 'g', -1, 64)
	case slog.KindTime:
		wire.Type = "time"
		wire.Value = attr.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		wire.Type = "duration"
		wire.Value = attr.Value.Duration().String()
	case slog.KindAny:
		if v := attr.Value.Any(); v != nil {
			if err, isErr := v.(error); isErr {
				wire.Type = "error"
				wire.Value = err.Error()
			} else if data, marshalErr := json.Marshal(v); marshalErr == nil {
				wire.Type = "json"
				wire.Value = string(data)
			} else {
				wire.Type = "any"
				wire.Value = fmt.Sprintf("%v", v)
			}
		} else {
			wire.Type = "any"
			wire.Value = "<nil>"
		}
	case slog.KindGroup:
		// Groups are sent as their printed form; the wire format is flat.
		wire.Type = "group"
		wire.Value = fmt.Sprintf("%v", attr.Value.Any())
	default:
		wire.Type = "any"
		wire.Value = fmt.Sprintf("%v", attr.Value.Any())
	}
	return wire
}

// fromLogAttrWire is the inverse of toLogAttrWire. Values that fail to parse
// are kept as strings.
func fromLogAttrWire(wire LogAttrWire) slog.Attr {
	switch wire.Type {
	case "int64":
		if n, err := strconv.ParseInt(wire.Value, 10, 64); err == nil {
			return slog.Int64(wire.Key, n)
		}
	case "uint64":
		if n, err := strconv.ParseUint(wire.Value, 10, 64); err == nil {
			return slog.Uint64(wire.Key, n)
		}
	case "bool":
		if b, err := strconv.ParseBool(wire.Value); err == nil {
			return slog.Bool(wire.Key, b)
		}
	case "float64":
		if f, err := strconv.ParseFloat(wire.Value, 64); err == nil {
			return slog.Float64(wire.Key, f)
		}
	case "time":
		if t, err := time.Parse(time.RFC3339Nano, wire.Value); err == nil {
			return slog.Time(wire.Key, t)
		}
	case "duration":
		if d, err := time.ParseDuration(wire.Value); err == nil {
			return slog.Duration(wire.Key, d)
		}
	case "json":
		if json.Valid([]byte(wire.Value)) {
			return slog.Any(wire.Key, json.RawMessage(wire.Value))
		}
	}
	return slog.String(wire.Key, wire.Value)
}
