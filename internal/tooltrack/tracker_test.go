// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tooltrack

import (
	"strings"
	"testing"
)

func TestStartInsertsPending(t *testing.T) {
	tr := NewTracker()
	tr.Start("t1", "update_app", map[string]any{"appId": "a1"})

	inv := tr.Get("t1")
	if inv == nil {
		t.Fatal("invocation not found")
	}
	if inv.State != StatePending || inv.Tool != "update_app" {
		t.Errorf("invocation = %+v", inv)
	}
	if inv.Input["appId"] != "a1" {
		t.Errorf("input = %+v", inv.Input)
	}
}

func TestFinishTransitionsExactlyOnce(t *testing.T) {
	tr := NewTracker()
	tr.Start("t1", "update_app", nil)

	tr.Finish("t1", true, map[string]any{"url": "https://app-a1.example"})
	inv := tr.Get("t1")
	if inv.State != StateSucceeded {
		t.Fatalf("State = %s", inv.State)
	}

	// A second result never reverts or rewrites the record.
	tr.Finish("t1", false, map[string]any{"message": "late failure"})
	inv = tr.Get("t1")
	if inv.State != StateSucceeded || inv.Payload["url"] != "https://app-a1.example" {
		t.Errorf("record revived: %+v", inv)
	}
}

func TestFinishUnknownCallDropped(t *testing.T) {
	tr := NewTracker()
	tr.Finish("ghost", true, nil)
	if inv := tr.Get("ghost"); inv != nil {
		t.Errorf("unexpected record: %+v", inv)
	}
}

func TestFailureIsTerminal(t *testing.T) {
	tr := NewTracker()
	tr.Start("t1", "update_app", nil)
	tr.Finish("t1", false, map[string]any{"message": "quota exceeded"})

	inv := tr.Get("t1")
	if inv.State != StateFailed {
		t.Fatalf("State = %s", inv.State)
	}
	if !inv.Terminal() {
		t.Error("failed invocation not terminal")
	}
	if got := inv.Render(); got != "quota exceeded" {
		t.Errorf("Render = %q", got)
	}
}

func TestLabelTable(t *testing.T) {
	tests := []struct {
		tool string
		want string
	}{
		{"create_app", "Creating app"},
		{"update_app", "Updating app"},
		{"get_app", "Fetching app"},
		{"get_app_logs", "Fetching app logs"},
		{"list_apps", "Listing apps"},
		{"delete_app", "Deleting app"},
		{"list_databases", "Listing databases"},
		{"mystery_tool", "mystery_tool"},
	}
	for _, tt := range tests {
		if got := Label(tt.tool); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.tool, got, tt.want)
		}
	}
}

func TestRenderPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			name:    "message wins over url",
			payload: map[string]any{"message": "deployed", "url": "https://x.example"},
			want:    "deployed",
		},
		{
			name:    "url when no message",
			payload: map[string]any{"url": "https://x.example"},
			want:    "https://x.example",
		},
		{
			name:    "nil payload",
			payload: nil,
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &Invocation{Payload: tt.payload}
			if got := inv.Render(); got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("structured payload pretty-printed", func(t *testing.T) {
		inv := &Invocation{Payload: map[string]any{"replicas": 3.0, "region": "eu-west"}}
		got := inv.Render()
		if !strings.Contains(got, `"replicas": 3`) || !strings.Contains(got, `"region": "eu-west"`) {
			t.Errorf("Render = %q", got)
		}
	})
}

func TestSubscribeByCallID(t *testing.T) {
	tr := NewTracker()

	var states []State
	unsub := tr.Subscribe("t1", func(inv *Invocation) {
		states = append(states, inv.State)
	})

	var other int
	tr.Subscribe("t2", func(*Invocation) { other++ })

	tr.Start("t1", "create_app", nil)
	tr.Finish("t1", true, nil)

	if len(states) != 2 || states[0] != StatePending || states[1] != StateSucceeded {
		t.Errorf("states = %v", states)
	}
	if other != 0 {
		t.Errorf("unrelated subscriber fired %d times", other)
	}

	unsub()
	tr.Start("t1b", "create_app", nil)
	tr.Finish("t1", true, nil) // dropped anyway, but must not notify
	if len(states) != 2 {
		t.Error("subscriber fired after unsubscribe")
	}
}

func TestAllAndPendingOrder(t *testing.T) {
	tr := NewTracker()
	tr.Start("t1", "create_app", nil)
	tr.Start("t2", "get_app_logs", nil)
	tr.Start("t3", "list_apps", nil)
	tr.Finish("t2", true, nil)

	all := tr.All()
	if len(all) != 3 || all[0].CallID != "t1" || all[2].CallID != "t3" {
		t.Errorf("All = %+v", all)
	}

	pending := tr.Pending()
	if len(pending) != 2 || pending[0] != "t1" || pending[1] != "t3" {
		t.Errorf("Pending = %v", pending)
	}

	tr.Reset()
	if len(tr.All()) != 0 {
		t.Error("records survive Reset")
	}
}
