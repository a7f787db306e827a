package history

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestRenderEmpty(t *testing.T) {
	t.Parallel()

	s := NewStore(4)
	if got := s.Render("wx:U1"); got != "" {
		t.Fatalf("Render() = %q, want empty", got)
	}
}

func TestRenderFormat(t *testing.T) {
	t.Parallel()

	s := NewStore(4)
	s.Append("wx:U1", RoleUser, "hello")
	s.Append("wx:U1", RoleAssistant, "hi there")

	want := "User: hello\nAssistant: hi there\n"
	if got := s.Render("wx:U1"); got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestAppendEvictsOldestFirst(t *testing.T) {
	t.Parallel()

	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Append("wx:U1", RoleUser, fmt.Sprintf("m%d", i))
	}

	got := s.Render("wx:U1")
	if strings.Contains(got, "m0") || strings.Contains(got, "m1") {
		t.Fatalf("Render() retains evicted turns: %q", got)
	}
	want := "User: m2\nUser: m3\nUser: m4\n"
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
	if s.Len("wx:U1") != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len("wx:U1"))
	}
}

func TestThreadsAreIndependent(t *testing.T) {
	t.Parallel()

	s := NewStore(4)
	s.Append("wx:U1", RoleUser, "one")
	s.Append("wx:U2", RoleUser, "two")

	if got := s.Render("wx:U1"); got != "User: one\n" {
		t.Fatalf("Render(U1) = %q", got)
	}
	if got := s.Render("wx:U2"); got != "User: two\n" {
		t.Fatalf("Render(U2) = %q", got)
	}
}

func TestConcurrentAppendKeepsCap(t *testing.T) {
	t.Parallel()

	s := NewStore(8)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Append("wx:U1", RoleUser, fmt.Sprintf("g%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	if got := s.Len("wx:U1"); got != 8 {
		t.Fatalf("Len() = %d, want 8", got)
	}
	if got := strings.Count(s.Render("wx:U1"), "\n"); got != 8 {
		t.Fatalf("Render() lines = %d, want 8", got)
	}
}
