package mirage

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/mirage/query"
	"github.com/roach88/mirage/schema"
)

func TestObserverReceivesEvents(t *testing.T) {
	var applied []ApplyEvent
	var resolved []ResolveEvent

	db := mustDB(t, blogModels(), WithObserver(Observer{
		OnApply:   func(ev ApplyEvent) { applied = append(applied, ev) },
		OnResolve: func(ev ResolveEvent) { resolved = append(resolved, ev) },
	}))
	users := mustModel(t, db, "user")
	posts := mustModel(t, db, "post")

	kate := mustCreate(t, users, map[string]any{"id": "u1"})
	p := mustCreate(t, posts, map[string]any{"id": "p1", "author": kate})

	if len(applied) != 1 {
		t.Fatalf("got %d apply events, want 1", len(applied))
	}
	ev := applied[0]
	if ev.Model != "post" || ev.Property != "author" || ev.Unset {
		t.Fatalf("apply event = %+v", ev)
	}

	if _, err := p.One("author"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) == 0 {
		t.Fatal("no resolve events recorded")
	}
	last := resolved[len(resolved)-1]
	if last.Model != "post" || last.Property != "author" {
		t.Fatalf("resolve event = %+v", last)
	}
}

func TestObserverUnsetEvent(t *testing.T) {
	var applied []ApplyEvent

	db := mustDB(t, partnerModels(), WithObserver(Observer{
		OnApply: func(ev ApplyEvent) { applied = append(applied, ev) },
	}))
	users := mustModel(t, db, "user")

	a := mustCreate(t, users, map[string]any{"id": "a"})
	mustCreate(t, users, map[string]any{"id": "b", "partner": a})

	applied = applied[:0]
	if _, err := users.Update(
		query.Where{"id": query.StringWhere{Equals: query.Ptr("b")}},
		map[string]any{"partner": nil},
	); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(applied) != 1 || !applied[0].Unset {
		t.Fatalf("apply events after unset = %+v, want a single unset event", applied)
	}
}

func TestRetainedEventsAreSnapshots(t *testing.T) {
	var resolved []ResolveEvent

	db := mustDB(t, blogModels(), WithObserver(Observer{
		OnResolve: func(ev ResolveEvent) { resolved = append(resolved, ev) },
	}))
	users := mustModel(t, db, "user")
	posts := mustModel(t, db, "post")

	kate := mustCreate(t, users, map[string]any{"id": "u1"})
	mustCreate(t, posts, map[string]any{"id": "p1", "author": kate})
	mustCreate(t, posts, map[string]any{"id": "p2", "author": kate})

	if _, err := kate.Many("posts"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ev := resolved[len(resolved)-1]
	want := append([]string{}, ev.TargetKeys...)

	// Mutate the underlying reference after the event was handed out.
	if _, err := posts.Delete(query.Where{"id": query.StringWhere{Equals: query.Ptr("p1")}}); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(ev.TargetKeys) != len(want) {
		t.Fatalf("retained event shrank to %d keys", len(ev.TargetKeys))
	}
	for i := range want {
		if ev.TargetKeys[i] != want[i] {
			t.Fatalf("retained event key %d changed to %q", i, ev.TargetKeys[i])
		}
	}
}

func TestZeroObserverIsNoOp(t *testing.T) {
	db := mustDB(t, partnerModels())
	users := mustModel(t, db, "user")

	a := mustCreate(t, users, map[string]any{"id": "a"})
	mustCreate(t, users, map[string]any{"id": "b", "partner": a})
	if _, err := a.One("partner"); err != nil {
		t.Fatalf("resolve with zero observer: %v", err)
	}
}

func TestZapObserverLogsEvents(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	db := mustDB(t, blogModels(), WithObserver(NewZapObserver(logger)))
	users := mustModel(t, db, "user")
	posts := mustModel(t, db, "post")

	kate := mustCreate(t, users, map[string]any{"id": "u1"})
	p := mustCreate(t, posts, map[string]any{"id": "p1", "author": kate})
	if _, err := p.One("author"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if logs.FilterMessage("relation applied").Len() != 1 {
		t.Fatalf("want one apply log entry, got %d", logs.FilterMessage("relation applied").Len())
	}
	if logs.FilterMessage("relation resolved").Len() == 0 {
		t.Fatal("no resolve log entries")
	}
}

func TestObserverNotFiredOnScalarWrites(t *testing.T) {
	var applied []ApplyEvent

	db := mustDB(t, schema.Models{
		"user": schema.Model{
			"id":   schema.PrimaryKey(schema.OptionalString()),
			"name": schema.OptionalString(),
		},
	}, WithObserver(Observer{
		OnApply: func(ev ApplyEvent) { applied = append(applied, ev) },
	}))
	users := mustModel(t, db, "user")

	mustCreate(t, users, map[string]any{"id": "u1", "name": "Kate"})
	if len(applied) != 0 {
		t.Fatalf("scalar-only create fired %d apply events", len(applied))
	}
}
