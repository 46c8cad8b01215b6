// Package activitymap turns session activity events into flat audit
// records for log pipelines and event buses.
package activitymap

import (
	"maps"
	"strings"
	"time"

	auth "github.com/goliatone/go-session-auth"
)

// Metadata keys added by the Mapper.
const (
	KeyReason = "reason"
	KeyEmail  = "email"
)

// Record is one audit entry. Subject identifies who or what the
// operation concerned, Actor who performed it.
type Record struct {
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Subject  string         `json:"subject,omitempty"`
	Channel  string         `json:"channel,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	At       time.Time      `json:"at"`
}

// Attrs flattens the record into logger key value pairs.
func (r Record) Attrs() []any {
	attrs := make([]any, 0, 8+2*len(r.Metadata))
	attrs = append(attrs, "actor", r.Actor, "action", r.Action, "channel", r.Channel, "at", r.At)
	if r.Subject != "" {
		attrs = append(attrs, "subject", r.Subject)
	}
	for key, value := range r.Metadata {
		attrs = append(attrs, key, value)
	}
	return attrs
}

// SubjectFunc derives the record subject from an event.
type SubjectFunc func(auth.ActivityEvent) string

// Mapper converts events to records. The zero value is usable.
type Mapper struct {
	channel   string
	anonymous string
	email     bool
	subject   SubjectFunc
	now       func() time.Time
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithDefaultChannel sets the channel stamped on every record.
func WithDefaultChannel(channel string) Option {
	return func(m *Mapper) {
		m.channel = strings.TrimSpace(channel)
	}
}

// WithObjectIDResolver replaces the subject lookup, which defaults to
// the event user id.
func WithObjectIDResolver(fn SubjectFunc) Option {
	return func(m *Mapper) {
		m.subject = fn
	}
}

// WithActorFallback names the actor of events without a user id, as
// for failed logins against unknown emails.
func WithActorFallback(actor string) Option {
	return func(m *Mapper) {
		m.anonymous = strings.TrimSpace(actor)
	}
}

// WithEmail copies the event email into the metadata. Off by default,
// emails are personal data.
func WithEmail() Option {
	return func(m *Mapper) {
		m.email = true
	}
}

// New builds a Mapper.
func New(opts ...Option) Mapper {
	m := Mapper{
		channel:   "auth",
		anonymous: "anonymous",
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Map converts a single event.
func (m Mapper) Map(event auth.ActivityEvent) Record {
	rec := Record{
		Actor:   strings.TrimSpace(event.UserID),
		Action:  string(event.EventType),
		Channel: m.channel,
		At:      event.OccurredAt,
	}

	if rec.Actor == "" {
		rec.Actor = m.anonymous
	}

	if m.subject != nil {
		rec.Subject = strings.TrimSpace(m.subject(event))
	} else {
		rec.Subject = strings.TrimSpace(event.UserID)
	}

	if rec.At.IsZero() {
		now := m.now
		if now == nil {
			now = time.Now
		}
		rec.At = now().UTC()
	}

	rec.Metadata = m.metadata(event)
	return rec
}

func (m Mapper) metadata(event auth.ActivityEvent) map[string]any {
	var out map[string]any
	if len(event.Metadata) > 0 {
		out = maps.Clone(event.Metadata)
	}

	set := func(key, value string) {
		if value = strings.TrimSpace(value); value == "" {
			return
		}
		if out == nil {
			out = map[string]any{}
		}
		out[key] = value
	}

	set(KeyReason, event.Reason)
	if m.email {
		set(KeyEmail, event.Email)
	}
	return out
}

// Normalize maps one event with a throwaway Mapper.
func Normalize(event auth.ActivityEvent, opts ...Option) Record {
	return New(opts...).Map(event)
}
