// Package session holds the client-side companion state for the socket
// protocol: the typing debouncer a sending client runs, and the per-chat
// typing/unread view a receiving client renders from gateway events. The
// gateway keeps no typing state at all, so both halves live here.
package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kgellert/teamchat/internal/ws"
)

// DefaultTypingDebounce is how long a client waits after the last keystroke
// before it emits stop-typing on its own.
const DefaultTypingDebounce = 800 * time.Millisecond

// Emitter sends client events toward the gateway.
type Emitter interface {
	Emit(eventType string, payload any)
}

// TypingNotifier debounces typing signals for one open chat. The first
// keystroke emits typing; each further keystroke pushes the stop timer back;
// the timer expiring, or an explicit send, emits stop-typing. If the
// connection drops instead, no stop-typing is ever sent: receivers clear the
// stale indicator with their own timers.
type TypingNotifier struct {
	mu       sync.Mutex
	chatID   string
	emitter  Emitter
	debounce time.Duration
	timer    *time.Timer
	typing   bool
}

func NewTypingNotifier(chatID string, emitter Emitter, debounce time.Duration) *TypingNotifier {
	if debounce <= 0 {
		debounce = DefaultTypingDebounce
	}

	return &TypingNotifier{
		chatID:   chatID,
		emitter:  emitter,
		debounce: debounce,
	}
}

// Keystroke reports local input and (re)starts the stop-typing timer.
func (t *TypingNotifier) Keystroke() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.typing {
		t.typing = true
		t.emitter.Emit(ws.EventTyping, ws.ChatRefPayload{ChatID: t.chatID})
	}

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.debounce, t.expire)
}

func (t *TypingNotifier) expire() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.typing {
		return
	}
	t.typing = false
	t.emitter.Emit(ws.EventStopTyping, ws.ChatRefPayload{ChatID: t.chatID})
}

// MessageSent emits stop-typing immediately, regardless of the timer.
func (t *TypingNotifier) MessageSent() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.typing {
		t.typing = false
		t.emitter.Emit(ws.EventStopTyping, ws.ChatRefPayload{ChatID: t.chatID})
	}
}

// TypingView is the receiving side: the set of users currently typing in a
// chat, fed by user-typing / user-stop-typing events.
type TypingView struct {
	mu    sync.Mutex
	users map[string]struct{}
}

func NewTypingView() *TypingView {
	return &TypingView{users: make(map[string]struct{})}
}

func (v *TypingView) Apply(eventType string, p ws.TypingPayload) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch eventType {
	case ws.EventUserTyping:
		v.users[p.UserID] = struct{}{}
	case ws.EventUserStopTyping:
		delete(v.users, p.UserID)
	}
}

// Text renders the indicator line: one or two names joined, anything beyond
// collapses to a generic line. resolve maps a user id to a display name.
func (v *TypingView) Text(resolve func(userID string) string) string {
	v.mu.Lock()
	ids := make([]string, 0, len(v.users))
	for id := range v.users {
		ids = append(ids, id)
	}
	v.mu.Unlock()

	if len(ids) == 0 {
		return ""
	}
	if len(ids) > 2 {
		return "Multiple people are typing…"
	}

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, resolve(id))
	}
	sort.Strings(names)

	if len(names) == 1 {
		return names[0] + " is typing…"
	}
	return strings.Join(names, ", ") + " are typing…"
}
