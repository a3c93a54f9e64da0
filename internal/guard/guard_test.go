package guard

import (
	"strings"
	"sync"
	"testing"
)

func TestGuard_CheckFile(t *testing.T) {
	g := New(Policy{
		AllowedFileGlobs: []string{"uploads/**/*.jpg", "docs/*.pdf"},
	})

	t.Run("Allowed", func(t *testing.T) {
		if v := g.CheckFile("uploads/2024/cat.jpg"); v != nil {
			t.Errorf("Unexpected violation: %v", v.Message)
		}
		if v := g.CheckFile("docs/report.pdf"); v != nil {
			t.Errorf("Unexpected violation: %v", v.Message)
		}
	})

	t.Run("Blocked", func(t *testing.T) {
		if v := g.CheckFile("docs/nested/report.pdf"); v == nil {
			t.Error("Expected violation for nested docs path")
		}
		if v := g.CheckFile("/etc/passwd"); v == nil {
			t.Error("Expected violation for absolute path")
		}
	})
}

func TestGuard_CheckChat(t *testing.T) {
	t.Run("Empty allow-list admits everyone", func(t *testing.T) {
		g := New(Policy{})
		if v := g.CheckChat(12345); v != nil {
			t.Errorf("Unexpected violation: %v", v.Message)
		}
	})

	t.Run("Allow-list", func(t *testing.T) {
		g := New(Policy{AllowedChatIDs: []int64{42, -1001}})
		if v := g.CheckChat(42); v != nil {
			t.Errorf("Unexpected violation: %v", v.Message)
		}
		if v := g.CheckChat(-1001); v != nil {
			t.Errorf("Unexpected violation: %v", v.Message)
		}
		v := g.CheckChat(7)
		if v == nil {
			t.Fatal("Expected violation for chat 7")
		}
		if v.Rule != "allowed_chat_ids" {
			t.Errorf("Rule = %q", v.Rule)
		}
	})
}

func TestGuard_Admit(t *testing.T) {
	g := New(Policy{CommandsPerMinute: 1, Burst: 3})

	for i := 0; i < 3; i++ {
		if v := g.Admit(1); v != nil {
			t.Fatalf("command %d rejected: %v", i, v.Message)
		}
	}
	v := g.Admit(1)
	if v == nil {
		t.Fatal("Expected rate limit after burst")
	}
	if v.Rule != "commands_per_minute" {
		t.Errorf("Rule = %q", v.Rule)
	}

	// Buckets are per chat.
	if v := g.Admit(2); v != nil {
		t.Errorf("chat 2 should have its own bucket: %v", v.Message)
	}
}

func TestGuard_AdmitUnlimited(t *testing.T) {
	g := New(Policy{})
	for i := 0; i < 1000; i++ {
		if v := g.Admit(1); v != nil {
			t.Fatalf("unexpected violation: %v", v.Message)
		}
	}
}

func TestGuard_AdmitConcurrent(t *testing.T) {
	g := New(Policy{CommandsPerMinute: 1, Burst: 10})

	var mu sync.Mutex
	admitted := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Admit(99) == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 10 {
		t.Errorf("admitted = %d, want 10", admitted)
	}
}

func TestGuard_CheckTags(t *testing.T) {
	g := New(Policy{MaxTags: 3, MaxTagLength: 5})

	testCases := []struct {
		name string
		tags []string
		rule string
	}{
		{"within", []string{"a", "bb", "ccc"}, ""},
		{"too many", []string{"a", "b", "c", "d"}, "max_tags"},
		{"too long", []string{strings.Repeat("x", 6)}, "max_tag_length"},
		{"runes not bytes", []string{"ééééé"}, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := g.CheckTags(tc.tags)
			if tc.rule == "" {
				if v != nil {
					t.Errorf("Unexpected violation: %v", v.Message)
				}
				return
			}
			if v == nil || v.Rule != tc.rule {
				t.Errorf("got %v, want rule %q", v, tc.rule)
			}
		})
	}
}

func TestDefaultPolicy(t *testing.T) {
	g := New(DefaultPolicy)
	if v := g.CheckFile("any/where/file.png"); v != nil {
		t.Errorf("default policy should allow any relative file: %v", v.Message)
	}
	if g.Policy().MaxTags != 20 {
		t.Errorf("MaxTags = %d", g.Policy().MaxTags)
	}
}

func TestPolicy_Local(t *testing.T) {
	p := DefaultPolicy
	p.AllowedChatIDs = []int64{42}
	g := New(p.Local())

	for i := 0; i < 100; i++ {
		if v := g.Admit(0); v != nil {
			t.Fatalf("request %d rejected: %v", i, v.Message)
		}
	}
	if v := g.CheckTags([]string{strings.Repeat("x", 65)}); v == nil {
		t.Error("tag limits should still apply")
	}
	if p.CommandsPerMinute != 30 || len(p.AllowedChatIDs) != 1 {
		t.Error("Local must not modify the receiver")
	}
}
