package domain

import "time"

// Author identifies who wrote a chat message.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SystemAuthor is the author attached to server-generated chat messages.
var SystemAuthor = Author{ID: "system", Name: "System"}

// ChatMessage is a single chat entry in a room. Messages are immutable once
// stored and ordered by timestamp ascending when returned to clients.
type ChatMessage struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsSystem  bool      `json:"isSystemMessage,omitempty"`
}
