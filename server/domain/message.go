package domain

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	MessageText MessageType = "text"
	MessageFile MessageType = "file"
)

type Message struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Room      string          `json:"room"`
	Text      string          `json:"text,omitempty"`
	Type      MessageType     `json:"type"`
	FileID    int64           `json:"-"`
	File      *FileRef        `json:"file,omitempty"`
	ReplyTo   json.RawMessage `json:"replyTo,omitempty"`
	MediaURL  string          `json:"mediaUrl,omitempty"`
	MediaType string          `json:"mediaType,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewSystemMessage(room, text string) Message {
	return Message{
		Username:  "System",
		Room:      room,
		Text:      text,
		Type:      MessageText,
		Timestamp: time.Now().UTC(),
	}
}
