package activitymap

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	recovery "github.com/goliatone/go-auth-recovery"
)

const (
	// MetadataKeyFlow stores the flow kind.
	MetadataKeyFlow = "flow"
	// MetadataKeySlot stores the action slot the event belongs to.
	MetadataKeySlot = "slot"
	// MetadataKeyCategory stores the error category of failed or rejected actions.
	MetadataKeyCategory = "category"
	// MetadataKeyRoute stores the handoff target.
	MetadataKeyRoute = "route"
)

const (
	defaultChannel    = "recovery"
	defaultObjectType = "recovery_flow"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel    string
	objectType string
	actorID    string
}

// Normalize converts a recovery.ActivityEvent into a generic normalized shape.
func Normalize(event recovery.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    options.actorID,
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   strings.TrimSpace(event.FlowID),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActor sets the actor id. Flows run before sign in, so the default is
// anonymous.
func WithActor(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			opts.actorID = actorID
		}
	}
}

// WriterSink writes normalized events as JSON lines.
type WriterSink struct {
	mu   sync.Mutex
	enc  *json.Encoder
	opts []Option
}

var _ recovery.ActivitySink = (*WriterSink)(nil)

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer, opts ...Option) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w), opts: opts}
}

// Record implements recovery.ActivitySink.
func (s *WriterSink) Record(_ context.Context, event recovery.ActivityEvent) error {
	out := Normalize(event, s.opts...)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(out)
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:    defaultChannel,
		objectType: defaultObjectType,
		actorID:    defaultActorID,
	}
}

func normalizeMetadata(event recovery.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	set := func(key, value string) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	set(MetadataKeyFlow, string(event.Flow))
	set(MetadataKeySlot, string(event.Slot))
	set(MetadataKeyCategory, string(event.Category))
	set(MetadataKeyRoute, string(event.Route))

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
