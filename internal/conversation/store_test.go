// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"testing"
	"time"

	"github.com/jeranaias/forgedeck/internal/api"
)

func TestAppendUserRejectsPendingUser(t *testing.T) {
	s := NewStore()

	if _, err := s.AppendUser("first"); err != nil {
		t.Fatalf("AppendUser: %v", err)
	}
	if _, err := s.AppendUser("second"); !errors.Is(err, ErrUserPending) {
		t.Fatalf("expected ErrUserPending, got %v", err)
	}

	// System notices do not satisfy the pending user.
	s.AppendSystem("notice")
	if _, err := s.AppendUser("third"); !errors.Is(err, ErrUserPending) {
		t.Fatalf("expected ErrUserPending past system notice, got %v", err)
	}

	// An assistant reply clears the way.
	id := s.BeginAssistant()
	s.FinalizeAssistant(id, "", nil)
	if _, err := s.AppendUser("fourth"); err != nil {
		t.Fatalf("AppendUser after reply: %v", err)
	}
}

func TestStreamingLifecycle(t *testing.T) {
	s := NewStore()
	if _, err := s.AppendUser("hello"); err != nil {
		t.Fatalf("AppendUser: %v", err)
	}

	id := s.BeginAssistant()
	s.ApplyDelta(id, "Hi ")
	s.ApplyDelta(id, "there.")

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if !msgs[1].Streaming || msgs[1].Content != "Hi there." {
		t.Errorf("streaming message = %+v", msgs[1])
	}

	s.FinalizeAssistant(id, "m2", &Stats{Deltas: 2, Duration: time.Second})

	msgs = s.Messages()
	last := msgs[len(msgs)-1]
	if last.Streaming {
		t.Error("message still streaming after finalize")
	}
	if last.ID != "m2" {
		t.Errorf("ID = %q, want server id m2", last.ID)
	}
	if last.Content != "Hi there." {
		t.Errorf("Content = %q", last.Content)
	}
	if last.Stats == nil || last.Stats.Deltas != 2 {
		t.Errorf("Stats = %+v", last.Stats)
	}

	// Body is immutable after finalize.
	s.ApplyDelta("m2", " more")
	if got := s.Messages()[1].Content; got != "Hi there." {
		t.Errorf("finalized body mutated: %q", got)
	}
}

func TestApplyDeltaUnknownIDIsNoop(t *testing.T) {
	s := NewStore()
	s.ApplyDelta("ghost", "text")
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestAttachToolSurvivesRename(t *testing.T) {
	s := NewStore()
	if _, err := s.AppendUser("deploy it"); err != nil {
		t.Fatalf("AppendUser: %v", err)
	}
	id := s.BeginAssistant()
	s.AttachTool(id, "t1")
	s.AttachTool(id, "t2")
	s.FinalizeAssistant(id, "m3", nil)

	msgs := s.Messages()
	last := msgs[len(msgs)-1]
	if last.ID != "m3" {
		t.Fatalf("ID = %q", last.ID)
	}
	if len(last.ToolCalls) != 2 || last.ToolCalls[0] != "t1" || last.ToolCalls[1] != "t2" {
		t.Errorf("ToolCalls = %v", last.ToolCalls)
	}
}

func TestRollbackPending(t *testing.T) {
	t.Run("keep user", func(t *testing.T) {
		s := NewStore()
		s.AppendUser("hello")
		id := s.BeginAssistant()
		s.ApplyDelta(id, "partial")

		s.RollbackPending(false)

		msgs := s.Messages()
		if len(msgs) != 1 || msgs[0].Role != RoleUser {
			t.Errorf("messages = %+v", msgs)
		}
	})

	t.Run("drop user", func(t *testing.T) {
		s := NewStore()
		s.AppendUser("hello")
		s.BeginAssistant()

		s.RollbackPending(true)

		if s.Len() != 0 {
			t.Errorf("Len = %d, want 0", s.Len())
		}
	})

	t.Run("no pending assistant", func(t *testing.T) {
		s := NewStore()
		s.AppendUser("hello")
		id := s.BeginAssistant()
		s.FinalizeAssistant(id, "", nil)

		s.RollbackPending(false)

		if s.Len() != 2 {
			t.Errorf("Len = %d, want 2 (finalized messages untouched)", s.Len())
		}
	})
}

func TestUniqueIDsAndRoleSequence(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		if _, err := s.AppendUser("turn"); err != nil {
			t.Fatalf("AppendUser %d: %v", i, err)
		}
		id := s.BeginAssistant()
		s.ApplyDelta(id, "reply")
		s.FinalizeAssistant(id, "", nil)
	}
	s.AppendSystem("notice")

	seen := make(map[string]bool)
	var prev Role
	for _, m := range s.Messages() {
		if seen[m.ID] {
			t.Errorf("duplicate id %s", m.ID)
		}
		seen[m.ID] = true

		if m.Role == RoleSystem {
			continue
		}
		if prev == m.Role {
			t.Errorf("roles do not alternate: %s after %s", m.Role, prev)
		}
		prev = m.Role
	}
}

func TestReplaceAndReset(t *testing.T) {
	s := NewStore()
	s.AppendUser("old")

	loaded := []*Message{
		FromAPI(api.Message{ID: "m1", Role: "user", Content: "hi"}),
		FromAPI(api.Message{ID: "m2", Role: "assistant", Content: "hello"}),
	}
	s.Replace(loaded)

	msgs := s.Messages()
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].Role != RoleAssistant {
		t.Errorf("messages after Replace = %+v", msgs)
	}

	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len after Reset = %d", s.Len())
	}
}

func TestSubscribeNotifications(t *testing.T) {
	s := NewStore()

	var changes []ChangeKind
	unsub := s.Subscribe(func(ch Change) {
		changes = append(changes, ch.Kind)
	})

	s.AppendUser("hello")
	id := s.BeginAssistant()
	s.ApplyDelta(id, "x")
	s.AttachTool(id, "t1")
	s.FinalizeAssistant(id, "", nil)

	want := []ChangeKind{ChangeAppend, ChangeAppend, ChangeDelta, ChangeToolAttached, ChangeFinalized}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("changes[%d] = %v, want %v", i, changes[i], want[i])
		}
	}

	unsub()
	s.AppendSystem("notice")
	if len(changes) != len(want) {
		t.Error("subscriber fired after unsubscribe")
	}
}

func TestFirstUserMessage(t *testing.T) {
	s := NewStore()
	if got := s.FirstUserMessage(); got != "" {
		t.Errorf("FirstUserMessage on empty store = %q", got)
	}
	s.AppendSystem("notice")
	s.AppendUser("the first question")
	if got := s.FirstUserMessage(); got != "the first question" {
		t.Errorf("FirstUserMessage = %q", got)
	}
}
