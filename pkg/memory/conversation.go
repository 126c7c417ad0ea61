package memory

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkarlsen/stagehand/pkg/llm"
)

// DefaultHistoryLimit caps how many messages are replayed into a model call.
const DefaultHistoryLimit = 50

// Conversation is an ordered message log for a single session.
type Conversation struct {
	SessionID string
	Messages  []llm.Message
	CreatedAt time.Time
}

// Recent returns the last limit messages. A limit <= 0 uses DefaultHistoryLimit.
func (c *Conversation) Recent(limit int) []llm.Message {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if len(c.Messages) <= limit {
		out := make([]llm.Message, len(c.Messages))
		copy(out, c.Messages)
		return out
	}
	out := make([]llm.Message, limit)
	copy(out, c.Messages[len(c.Messages)-limit:])
	return out
}

// LLMMessages returns recent user/assistant messages suitable for a model
// request. Tool and system messages are internal bookkeeping and are skipped.
func (c *Conversation) LLMMessages(limit int) []llm.Message {
	recent := c.Recent(limit)
	out := make([]llm.Message, 0, len(recent))
	for _, msg := range recent {
		if msg.Role == llm.RoleUser || msg.Role == llm.RoleAssistant {
			out = append(out, llm.Message{Role: msg.Role, Content: msg.Content})
		}
	}
	return out
}

// MessageCount returns the total number of messages in the log.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// ConversationMemory manages conversation history across sessions.
type ConversationMemory struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	logger        zerolog.Logger
}

// NewConversationMemory creates an empty conversation store.
func NewConversationMemory(logger zerolog.Logger) *ConversationMemory {
	return &ConversationMemory{
		conversations: make(map[string]*Conversation),
		logger:        logger.With().Str("component", "conversation_memory").Logger(),
	}
}

// Append adds a message to the session's log, creating the session on first use.
func (m *ConversationMemory) Append(sessionID string, msg llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[sessionID]
	if !ok {
		conv = &Conversation{SessionID: sessionID, CreatedAt: time.Now()}
		m.conversations[sessionID] = conv
		m.logger.Debug().Str("session_id", sessionID).Msg("created conversation")
	}
	conv.Messages = append(conv.Messages, msg)
}

// AppendUser records a user message.
func (m *ConversationMemory) AppendUser(sessionID, content string) {
	m.Append(sessionID, llm.Message{Role: llm.RoleUser, Content: content})
}

// AppendAssistant records an assistant message.
func (m *ConversationMemory) AppendAssistant(sessionID, content string) {
	m.Append(sessionID, llm.Message{Role: llm.RoleAssistant, Content: content})
}

// History returns recent user/assistant messages for a session in model
// request form. Unknown sessions return an empty slice.
func (m *ConversationMemory) History(sessionID string, limit int) []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[sessionID]
	if !ok {
		return []llm.Message{}
	}
	return conv.LLMMessages(limit)
}

// MessageCount returns the number of messages stored for a session.
func (m *ConversationMemory) MessageCount(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[sessionID]
	if !ok {
		return 0
	}
	return conv.MessageCount()
}

// Clear drops a session's history. Clearing an unknown session is a no-op.
func (m *ConversationMemory) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[sessionID]; ok {
		delete(m.conversations, sessionID)
		m.logger.Info().Str("session_id", sessionID).Msg("cleared conversation")
	}
}

// Sessions returns the IDs of all sessions with stored history.
func (m *ConversationMemory) Sessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.conversations))
	for id := range m.conversations {
		ids = append(ids, id)
	}
	return ids
}
