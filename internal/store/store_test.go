package store

import (
	"context"
	"fmt"
	"testing"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// backends returns one fresh instance of each ConversationStore.
func backends(t *testing.T) map[string]ConversationStore {
	t.Helper()
	return map[string]ConversationStore{
		"sqlite": openTestStore(t),
		"memory": NewMemoryStore(100),
	}
}

func user(content string) Message      { return Message{Role: RoleUser, Content: content} }
func assistant(content string) Message { return Message{Role: RoleAssistant, Content: content, Category: "chat"} }

func Test_Store_AppendAndRecent(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Append(ctx, "sess-a", user("hello"), assistant("world")); err != nil {
				t.Fatalf("append: %v", err)
			}

			msgs, err := s.Recent(ctx, "sess-a", 10)
			if err != nil {
				t.Fatalf("recent: %v", err)
			}
			if len(msgs) != 2 {
				t.Fatalf("want 2 messages, got %d", len(msgs))
			}
			if msgs[0].Role != RoleUser || msgs[0].Content != "hello" {
				t.Errorf("msg[0]: want user/hello, got %s/%s", msgs[0].Role, msgs[0].Content)
			}
			if msgs[1].Role != RoleAssistant || msgs[1].Content != "world" || msgs[1].Category != "chat" {
				t.Errorf("msg[1]: want assistant/world/chat, got %s/%s/%s", msgs[1].Role, msgs[1].Content, msgs[1].Category)
			}
			if msgs[0].ID == "" || msgs[0].ID >= msgs[1].ID {
				t.Errorf("ids must be set and increasing: %q, %q", msgs[0].ID, msgs[1].ID)
			}
			if msgs[0].CreatedAt.IsZero() {
				t.Error("CreatedAt not set")
			}
		})
	}
}

func Test_Store_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := range 6 {
				if err := s.Append(ctx, "sess-b", user(fmt.Sprintf("msg-%d", i))); err != nil {
					t.Fatalf("append: %v", err)
				}
			}

			msgs, err := s.Recent(ctx, "sess-b", 4)
			if err != nil {
				t.Fatalf("recent: %v", err)
			}
			if len(msgs) != 4 {
				t.Fatalf("want 4 messages, got %d", len(msgs))
			}
			if msgs[0].Content != "msg-2" || msgs[3].Content != "msg-5" {
				t.Errorf("want msg-2..msg-5, got %s..%s", msgs[0].Content, msgs[3].Content)
			}
		})
	}
}

func Test_Store_SessionIsolation(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Append(ctx, "x", user("from x")); err != nil {
				t.Fatalf("append x: %v", err)
			}
			if err := s.Append(ctx, "y", user("from y")); err != nil {
				t.Fatalf("append y: %v", err)
			}

			msgsX, _ := s.Recent(ctx, "x", 10)
			msgsY, _ := s.Recent(ctx, "y", 10)
			if len(msgsX) != 1 || msgsX[0].Content != "from x" {
				t.Errorf("session x isolation failed: got %v", msgsX)
			}
			if len(msgsY) != 1 || msgsY[0].Content != "from y" {
				t.Errorf("session y isolation failed: got %v", msgsY)
			}
		})
	}
}

func Test_Store_EmptySessionReturnsNothing(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			msgs, err := s.Recent(context.Background(), "empty", 10)
			if err != nil {
				t.Fatalf("recent empty: %v", err)
			}
			if len(msgs) != 0 {
				t.Errorf("want 0 messages, got %d", len(msgs))
			}
		})
	}
}

func Test_Store_CountAndClear(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Append(ctx, "c", user("q"), assistant("a")); err != nil {
				t.Fatalf("append: %v", err)
			}
			if err := s.Append(ctx, "other", user("keep")); err != nil {
				t.Fatalf("append: %v", err)
			}

			if n, _ := s.Count(ctx, "c"); n != 2 {
				t.Errorf("want count 2, got %d", n)
			}
			if err := s.Clear(ctx, "c"); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if n, _ := s.Count(ctx, "c"); n != 0 {
				t.Errorf("want count 0 after clear, got %d", n)
			}
			if n, _ := s.Count(ctx, "other"); n != 1 {
				t.Errorf("clear must not touch other sessions, got %d", n)
			}
		})
	}
}

func Test_MemoryStore_EvictsOldest(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(3)
	ctx := context.Background()

	for i := range 5 {
		if err := s.Append(ctx, "ring", user(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if n, _ := s.Count(ctx, "ring"); n != 3 {
		t.Fatalf("want 3 retained, got %d", n)
	}
	msgs, _ := s.Recent(ctx, "ring", 10)
	if msgs[0].Content != "m2" || msgs[2].Content != "m4" {
		t.Errorf("want m2..m4 retained, got %s..%s", msgs[0].Content, msgs[2].Content)
	}
}

func Test_MemoryStore_RecentReturnsCopy(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(0)
	ctx := context.Background()
	_ = s.Append(ctx, "s", user("original"))

	msgs, _ := s.Recent(ctx, "s", 1)
	msgs[0].Content = "mutated"

	again, _ := s.Recent(ctx, "s", 1)
	if again[0].Content != "original" {
		t.Errorf("store contents changed through returned slice: %q", again[0].Content)
	}
}

var (
	_ ConversationStore = (*SQLiteStore)(nil)
	_ ConversationStore = (*MemoryStore)(nil)
)
