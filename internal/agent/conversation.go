package agent

import "github.com/GenLoc-2025/GenLoc/internal/llm"

// Conversation is the append-only message log of one run.
type Conversation struct {
	msgs []llm.ChatMessage
}

// NewConversation seeds a conversation with the given messages.
func NewConversation(seed ...llm.ChatMessage) *Conversation {
	c := &Conversation{msgs: make([]llm.ChatMessage, 0, len(seed)+16)}
	for _, m := range seed {
		c.Append(m)
	}
	return c
}

// Append adds a message at the end. Stored messages are never modified.
func (c *Conversation) Append(m llm.ChatMessage) {
	c.msgs = append(c.msgs, llm.CloneMessage(m))
}

// Snapshot returns a deep copy of the messages so far.
func (c *Conversation) Snapshot() []llm.ChatMessage {
	return llm.CloneMessages(c.msgs)
}

// Len reports the number of messages.
func (c *Conversation) Len() int {
	return len(c.msgs)
}
