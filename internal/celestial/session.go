package celestial

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Session maintains an ordered, append-only chat log and forwards new
// turns to the generative provider together with accumulated context.
// Only historical events are forwarded as context, keeping the prompt
// grounded in claims already validated by date filtering.
type Session struct {
	id         string
	generative GenerativeProvider
	location   *Coordinate

	mu     sync.Mutex
	turns  []ChatTurn
	events []CelestialEvent
}

// NewSession creates a session. Any upcoming-tagged events in the context
// are discarded; only historical ones are kept.
func NewSession(generative GenerativeProvider, location *Coordinate, events []CelestialEvent) *Session {
	s := &Session{
		id:         uuid.NewString(),
		generative: generative,
		location:   location,
	}
	for _, ev := range events {
		if ev.Kind == EventHistorical {
			s.events = append(s.events, ev)
		}
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

// SeedAssistant installs the opening assistant turn, typically the event
// summary for the session's date. It only applies to an empty log; once
// the exchange has started the log is append-only and a late seed is
// dropped.
func (s *Session) SeedAssistant(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) > 0 {
		return
	}
	s.turns = append(s.turns, ChatTurn{Author: TurnAssistant, Text: text})
}

// Turns returns a copy of the exchange log. Turns are never edited or
// removed.
func (s *Session) Turns() []ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Submit appends the user turn, requests the next assistant turn, and on
// success appends it too. On failure only the user turn is kept and the
// failure is reported; the user's input is never silently dropped. A chat
// reply has no safe synthetic substitute, so there is no fallback here.
func (s *Session) Submit(ctx context.Context, userText string) (string, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return "", fmt.Errorf("%w: empty message", ErrValidationRejected)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, ChatTurn{Author: TurnUser, Text: userText})

	reply, err := s.generative.Chat(ctx, s.preamble(), s.turns)
	if err != nil {
		return "", err
	}

	reply = strings.TrimSpace(reply)
	s.turns = append(s.turns, ChatTurn{Author: TurnAssistant, Text: reply})
	return reply, nil
}

func (s *Session) preamble() string {
	var b strings.Builder
	b.WriteString("You are an astronomy assistant.")
	if s.location != nil {
		fmt.Fprintf(&b, " The user is at latitude %f, longitude %f.", s.location.Latitude, s.location.Longitude)
	}
	if len(s.events) > 0 {
		if data, err := json.Marshal(s.events); err == nil {
			fmt.Fprintf(&b, " Here are some historical astronomical events for this location: %s.", data)
		}
	} else {
		b.WriteString(" No specific historical events are provided.")
	}
	b.WriteString(" Answer in a friendly, informative way, referencing the provided events if relevant.")
	return b.String()
}

// SessionManager tracks live sessions by id.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
	}
}

// Create opens a new session seeded with location and event context.
func (m *SessionManager) Create(generative GenerativeProvider, location *Coordinate, events []CelestialEvent) *Session {
	s := NewSession(generative, location, events)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	return s
}

// Get looks up a session by id.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}
