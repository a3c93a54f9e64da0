package guard

import (
	"fmt"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/time/rate"
)

// Policy defines what a chat may do.
type Policy struct {
	CommandsPerMinute int      `json:"commands_per_minute"`
	Burst             int      `json:"burst"`
	MaxTags           int      `json:"max_tags"`
	MaxTagLength      int      `json:"max_tag_length"`
	AllowedChatIDs    []int64  `json:"allowed_chat_ids"`
	AllowedFileGlobs  []string `json:"allowed_file_globs"`
}

// DefaultPolicy provides safe defaults.
var DefaultPolicy = Policy{
	CommandsPerMinute: 30,
	Burst:             10,
	MaxTags:           20,
	MaxTagLength:      64,
	AllowedFileGlobs:  []string{"**"},
}

// Local returns p adjusted for the single trusted user of the local console
// and CLI: no rate limit and no chat allow-list. Tag and file rules still apply.
func (p Policy) Local() Policy {
	p.CommandsPerMinute = 0
	p.AllowedChatIDs = nil
	return p
}

// Violation represents a specific breach of policy.
type Violation struct {
	Rule    string
	Message string
}

func (v *Violation) Error() string {
	return v.Rule + ": " + v.Message
}

// Guard enforces the policy. Safe for concurrent use.
type Guard struct {
	policy  Policy
	allowed map[int64]struct{}

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

func New(p Policy) *Guard {
	g := &Guard{
		policy:   p,
		limiters: make(map[int64]*rate.Limiter),
	}
	if len(p.AllowedChatIDs) > 0 {
		g.allowed = make(map[int64]struct{}, len(p.AllowedChatIDs))
		for _, id := range p.AllowedChatIDs {
			g.allowed[id] = struct{}{}
		}
	}
	return g
}

// Policy returns the guard's current policy configuration.
func (g *Guard) Policy() Policy {
	return g.policy
}

// CheckChat rejects chats outside the allow-list. An empty list admits everyone.
func (g *Guard) CheckChat(chatID int64) *Violation {
	if g.allowed == nil {
		return nil
	}
	if _, ok := g.allowed[chatID]; !ok {
		return &Violation{Rule: "allowed_chat_ids", Message: fmt.Sprintf("chat %d is not allowed", chatID)}
	}
	return nil
}

// Admit consumes one token from the chat's bucket.
func (g *Guard) Admit(chatID int64) *Violation {
	if v := g.CheckChat(chatID); v != nil {
		return v
	}
	if g.policy.CommandsPerMinute <= 0 {
		return nil
	}
	if !g.limiter(chatID).Allow() {
		return &Violation{Rule: "commands_per_minute", Message: fmt.Sprintf("chat %d exceeded %d commands per minute", chatID, g.policy.CommandsPerMinute)}
	}
	return nil
}

func (g *Guard) limiter(chatID int64) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.limiters[chatID]
	if !ok {
		burst := g.policy.Burst
		if burst <= 0 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(g.policy.CommandsPerMinute)), burst)
		g.limiters[chatID] = l
	}
	return l
}

// CheckTags enforces the tag count and tag length limits of one /tag call.
func (g *Guard) CheckTags(tags []string) *Violation {
	if g.policy.MaxTags > 0 && len(tags) > g.policy.MaxTags {
		return &Violation{Rule: "max_tags", Message: fmt.Sprintf("at most %d tags per command", g.policy.MaxTags)}
	}
	if g.policy.MaxTagLength > 0 {
		for _, tag := range tags {
			if len([]rune(tag)) > g.policy.MaxTagLength {
				return &Violation{Rule: "max_tag_length", Message: fmt.Sprintf("tags are limited to %d characters", g.policy.MaxTagLength)}
			}
		}
	}
	return nil
}

// CheckFile verifies that a local upload path matches an allowed glob.
func (g *Guard) CheckFile(path string) *Violation {
	for _, pattern := range g.policy.AllowedFileGlobs {
		match, err := doublestar.Match(pattern, path)
		if err == nil && match {
			return nil
		}
	}
	return &Violation{Rule: "allowed_file_globs", Message: "File access not allowed: " + path}
}
