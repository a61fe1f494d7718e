// Package logging provides a fluent structured-field builder that sits on
// top of zap, so call sites build up context without importing zap
// directly into every adapter.
package logging

import "time"

// Fields is a fluent builder for structured log fields.
type Fields map[string]interface{}

// NewFields returns an empty field set.
func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

func (f Fields) Resource(kind, name string) Fields {
	f["resource_type"] = kind
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

func (f Fields) Workspace(ws string) Fields {
	f["workspace"] = ws
	return f
}

func (f Fields) Artifact(id string) Fields {
	f["artifact_id"] = id
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Err(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}
