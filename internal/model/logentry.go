package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// LogEntry is a single structured log record owned by one application.
// The same struct is used for the JSON API and the Mongo collection.
type LogEntry struct {
	ID        string    `json:"id" bson:"_id"`
	AppID     string    `json:"app_id" bson:"app_id"`
	Level     string    `json:"level,omitempty" bson:"level,omitempty"`
	Module    string    `json:"module,omitempty" bson:"module,omitempty"`
	RequestID string    `json:"request_id,omitempty" bson:"request_id,omitempty"`
	VisitorID string    `json:"visitor_id,omitempty" bson:"visitor_id,omitempty"`
	Message   string    `json:"message,omitempty" bson:"message,omitempty"`
	Meta      any       `json:"meta,omitempty" bson:"meta,omitempty"`
	Created   time.Time `json:"created" bson:"created"`
	Received  time.Time `json:"received" bson:"received"`
}

// LogData is the client payload for creating an entry.
// id, app_id and received are not part of it; the server owns them.
type LogData struct {
	Level     string     `json:"level"`
	Module    string     `json:"module"`
	RequestID string     `json:"request_id"`
	VisitorID string     `json:"visitor_id"`
	Message   string     `json:"message"`
	Meta      any        `json:"meta"`
	Created   *time.Time `json:"created" validate:"required"`
}

// LogPatch is a partial update. Nil fields keep their stored value.
// Meta is kept raw so an explicit JSON null can clear it.
type LogPatch struct {
	Level     *string         `json:"level"`
	Module    *string         `json:"module"`
	RequestID *string         `json:"request_id"`
	VisitorID *string         `json:"visitor_id"`
	Message   *string         `json:"message"`
	Meta      json.RawMessage `json:"meta"`
	Created   *time.Time      `json:"created"`
}

// Field names shared by every storage backend (BSON keys and SQL columns).
const (
	FieldLevel     = "level"
	FieldModule    = "module"
	FieldRequestID = "request_id"
	FieldVisitorID = "visitor_id"
	FieldMessage   = "message"
	FieldMeta      = "meta"
	FieldCreated   = "created"
)

// Changes maps storage field names to their new values.
type Changes map[string]any

// UnmarshalJSON decodes created with ParseTime, so the payload may carry a
// date, an RFC 3339 timestamp or Unix milliseconds.
func (d *LogData) UnmarshalJSON(b []byte) error {
	type plain LogData
	aux := struct {
		*plain
		Created json.RawMessage `json:"created"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	created, err := decodeTime(aux.Created)
	if err != nil {
		return fmt.Errorf("created: %w", err)
	}
	d.Created = created
	return nil
}

// UnmarshalJSON decodes created the same way as LogData.
func (p *LogPatch) UnmarshalJSON(b []byte) error {
	type plain LogPatch
	aux := struct {
		*plain
		Created json.RawMessage `json:"created"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	created, err := decodeTime(aux.Created)
	if err != nil {
		return fmt.Errorf("created: %w", err)
	}
	p.Created = created
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p *LogPatch) IsEmpty() bool {
	return p == nil || (p.Level == nil && p.Module == nil && p.RequestID == nil &&
		p.VisitorID == nil && p.Message == nil && len(p.Meta) == 0 && p.Created == nil)
}

// Changes converts the patch into storage field updates. Meta is decoded
// into a plain value; a JSON null yields a nil value.
func (p *LogPatch) Changes() (Changes, error) {
	ch := Changes{}
	if p == nil {
		return ch, nil
	}
	if p.Level != nil {
		ch[FieldLevel] = *p.Level
	}
	if p.Module != nil {
		ch[FieldModule] = *p.Module
	}
	if p.RequestID != nil {
		ch[FieldRequestID] = *p.RequestID
	}
	if p.VisitorID != nil {
		ch[FieldVisitorID] = *p.VisitorID
	}
	if p.Message != nil {
		ch[FieldMessage] = *p.Message
	}
	if p.Created != nil {
		ch[FieldCreated] = p.Created.UTC()
	}
	if len(p.Meta) > 0 {
		var meta any
		if err := json.Unmarshal(p.Meta, &meta); err != nil {
			return nil, fmt.Errorf("decode meta: %w", err)
		}
		ch[FieldMeta] = meta
	}
	return ch, nil
}

// Apply merges changes into e. Unknown keys are ignored.
func (e *LogEntry) Apply(ch Changes) {
	for k, v := range ch {
		switch k {
		case FieldLevel:
			e.Level, _ = v.(string)
		case FieldModule:
			e.Module, _ = v.(string)
		case FieldRequestID:
			e.RequestID, _ = v.(string)
		case FieldVisitorID:
			e.VisitorID, _ = v.(string)
		case FieldMessage:
			e.Message, _ = v.(string)
		case FieldMeta:
			e.Meta = v
		case FieldCreated:
			if t, ok := v.(time.Time); ok {
				e.Created = t
			}
		}
	}
}
