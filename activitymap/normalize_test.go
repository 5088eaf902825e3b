package activitymap_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	recovery "github.com/goliatone/go-auth-recovery"
	"github.com/goliatone/go-auth-recovery/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := recovery.ActivityEvent{
		EventType:  recovery.ActivityEventActionFailed,
		FlowID:     "flow-100",
		Flow:       recovery.FlowActivation,
		Slot:       recovery.SlotSubmit,
		Category:   recovery.CategoryUnreachable,
		Metadata:   map[string]any{"attempt": 2},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "anonymous" {
		t.Fatalf("expected actor_id anonymous, got %q", out.ActorID)
	}
	if out.Verb != string(recovery.ActivityEventActionFailed) {
		t.Fatalf("expected verb %q, got %q", recovery.ActivityEventActionFailed, out.Verb)
	}
	if out.ObjectType != "recovery_flow" {
		t.Fatalf("expected object_type recovery_flow, got %q", out.ObjectType)
	}
	if out.ObjectID != "flow-100" {
		t.Fatalf("expected object_id flow-100, got %q", out.ObjectID)
	}
	if out.Channel != "recovery" {
		t.Fatalf("expected channel recovery, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}

	if out.Metadata["attempt"] != 2 {
		t.Fatalf("expected metadata attempt 2, got %#v", out.Metadata["attempt"])
	}
	if out.Metadata[activitymap.MetadataKeySlot] != "submit" {
		t.Fatalf("expected metadata slot submit, got %#v", out.Metadata[activitymap.MetadataKeySlot])
	}
	if out.Metadata[activitymap.MetadataKeyCategory] != "unreachable" {
		t.Fatalf("expected metadata category unreachable, got %#v", out.Metadata[activitymap.MetadataKeyCategory])
	}
	if _, ok := out.Metadata[activitymap.MetadataKeyRoute]; ok {
		t.Fatalf("expected no route metadata, got %#v", out.Metadata[activitymap.MetadataKeyRoute])
	}
	if event.Metadata[activitymap.MetadataKeySlot] != nil {
		t.Fatalf("expected source metadata to stay untouched")
	}
}

func TestNormalizeOverrides(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(recovery.ActivityEvent{
		EventType: recovery.ActivityEventHandoff,
		FlowID:    " flow-7 ",
		Route:     recovery.RouteResetConfirmation,
		Metadata:  map[string]any{activitymap.MetadataKeyRoute: "custom"},
	},
		activitymap.WithDefaultChannel(" audit "),
		activitymap.WithDefaultObjectType("password_reset"),
		activitymap.WithActor("kiosk-3"),
	)

	if out.Channel != "audit" || out.ObjectType != "password_reset" || out.ActorID != "kiosk-3" {
		t.Fatalf("unexpected overrides: %+v", out)
	}
	if out.ObjectID != "flow-7" {
		t.Fatalf("expected trimmed object id, got %q", out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyRoute] != "custom" {
		t.Fatalf("expected explicit metadata to win, got %#v", out.Metadata[activitymap.MetadataKeyRoute])
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to default to now")
	}
}

func TestWriterSinkWritesJSONLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := activitymap.NewWriterSink(&buf)

	for _, kind := range []recovery.ActivityEventType{
		recovery.ActivityEventActionStarted,
		recovery.ActivityEventActionSucceeded,
	} {
		if err := sink.Record(context.Background(), recovery.ActivityEvent{EventType: kind, FlowID: "f1"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var first activitymap.Normalized
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Verb != string(recovery.ActivityEventActionStarted) || first.ObjectID != "f1" {
		t.Fatalf("unexpected record: %+v", first)
	}
}
