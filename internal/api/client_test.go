// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeranaias/forgedeck/internal/credentials"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	creds := credentials.NewMemStore()
	if err := creds.Set(credentials.TokenKey, "test-token"); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	client := NewClient(ClientConfig{
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}, creds)
	return client, srv
}

func TestListConversations(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id":"c2","title":"Newer","lastActivity":"2025-06-02T10:00:00Z"},
			{"id":"c1","title":"Older","lastActivity":"2025-06-01T10:00:00Z"}
		]`)
	}))

	summaries, err := client.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(summaries) != 2 || summaries[0].ID != "c2" || summaries[1].Title != "Older" {
		t.Errorf("unexpected summaries: %+v", summaries)
	}
}

func TestLoadConversation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations/c1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `{"id":"c1","title":"T","messages":[
			{"id":"m1","role":"user","content":"hi"},
			{"id":"m2","role":"assistant","content":"hello"}
		]}`)
	}))

	conv, err := client.LoadConversation(context.Background(), "c1")
	if err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}
	if conv.ID != "c1" || len(conv.Messages) != 2 || conv.Messages[1].Role != "assistant" {
		t.Errorf("unexpected conversation: %+v", conv)
	}
}

func TestDeleteConversation(t *testing.T) {
	var called atomic.Bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/conversations/c1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		called.Store(true)
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.DeleteConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if !called.Load() {
		t.Error("server never called")
	}
}

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":"auth","message":"token expired"}}`, ErrAuth},
		{"forbidden", http.StatusForbidden, ``, ErrAuth},
		{"not found", http.StatusNotFound, ``, ErrNotFound},
		{"validation", http.StatusUnprocessableEntity, `{"error":{"code":"validation","message":"empty text"}}`, ErrValidation},
		{"bad request", http.StatusBadRequest, ``, ErrValidation},
		{"app context", http.StatusConflict, `{"error":{"code":"app_context","message":"app gone"}}`, ErrAppContext},
		{"app context by code", http.StatusBadRequest, `{"error":{"code":"app_context","message":"app gone"}}`, ErrAppContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))

			_, err := client.LoadConversation(context.Background(), "c1")
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want kind of %v", err, tt.want)
			}
		})
	}
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `[]`)
	}))

	if _, err := client.ListConversations(context.Background()); err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestMissingTokenIsAuthError(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://localhost:1"}, credentials.NewMemStore())

	_, err := client.ListConversations(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestOpenStreamNewConversation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/conversations/messages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "application/x-ndjson" {
			t.Errorf("Accept = %q", got)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"kind":"conversation_created","conversationId":"c9","title":"hi"}`+"\n")
		io.WriteString(w, `{"kind":"delta","text":"hello"}`+"\n")
		io.WriteString(w, `{"kind":"assistant_complete","messageId":"m1"}`+"\n")
	}))

	stream, err := client.OpenStream(context.Background(), "", "hi", "")
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer stream.Close()

	var kinds []EventKind
	for {
		evt, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		kinds = append(kinds, evt.Kind)
	}
	want := []EventKind{EventConversationCreated, EventDelta, EventAssistantComplete}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestOpenStreamExistingConversationPath(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations/c1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `{"kind":"assistant_complete","messageId":"m1"}`+"\n")
	}))

	stream, err := client.OpenStream(context.Background(), "c1", "hi", "app-7")
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	stream.Close()
}

func TestOpenStreamCancellation(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"kind":"delta","text":"partial"}`+"\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.OpenStream(ctx, "c1", "hi", "")
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer stream.Close()

	if _, err := stream.Recv(); err != nil {
		t.Fatalf("Recv first delta: %v", err)
	}

	cancel()
	_, err = stream.Recv()
	if err == nil || err == io.EOF {
		t.Fatalf("expected error after cancel, got %v", err)
	}
}
