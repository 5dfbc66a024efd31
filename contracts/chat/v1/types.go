// Package v1 defines the chat relay wire contract.
//
// Frames are flat JSON text messages distinguished by "type". Inbound chat
// frames may omit the type; every server frame carries one.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Type constants (wire-stable).
const (
	// TypeContacts carries the online roster (server -> client).
	TypeContacts = "contacts"
	// TypeMessage carries a chat message (both directions).
	TypeMessage = "message"
	// TypeError reports a rejected inbound frame (server -> client).
	TypeError = "error"
)

// MaxTextChars bounds inbound message text (runes).
const MaxTextChars = 4000

// Validation errors returned by Inbound.Validate.
var (
	ErrMissingSender   = errors.New("missing field: senderId")
	ErrMissingReceiver = errors.New("missing field: receiverId")
	ErrEmptyText       = errors.New("empty text")
	ErrTextTooLong     = fmt.Errorf("text too long: max=%d chars", MaxTextChars)
	ErrUnsupportedType = errors.New("unsupported type")
)

// Inbound is a chat message as sent by a client.
type Inbound struct {
	Type           string `json:"type,omitempty"`
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId"`
	Text           string `json:"text"`
	SenderUsername string `json:"senderUsername,omitempty"`
}

// Validate performs structural validation. Identity binding is checked by the gateway.
func (m Inbound) Validate() error {
	if m.Type != "" && m.Type != TypeMessage {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, m.Type)
	}
	if strings.TrimSpace(m.SenderID) == "" {
		return ErrMissingSender
	}
	if strings.TrimSpace(m.ReceiverID) == "" {
		return ErrMissingReceiver
	}
	if strings.TrimSpace(m.Text) == "" {
		return ErrEmptyText
	}
	if utf8.RuneCountInString(m.Text) > MaxTextChars {
		return ErrTextTooLong
	}
	return nil
}

// DecodeInbound parses a raw frame into an Inbound message.
func DecodeInbound(data []byte) (Inbound, error) {
	var m Inbound
	if err := json.Unmarshal(data, &m); err != nil {
		return Inbound{}, err
	}
	return m, nil
}

// OnlineUser is one roster entry.
type OnlineUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Contacts is the presence frame.
type Contacts struct {
	Type   string       `json:"type"`
	Online []OnlineUser `json:"online"`
}

// NewContacts builds a presence frame. A nil roster is encoded as [].
func NewContacts(online []OnlineUser) Contacts {
	if online == nil {
		online = []OnlineUser{}
	}
	return Contacts{Type: TypeContacts, Online: online}
}

// Message is the outbound chat frame.
type Message struct {
	Type           string `json:"type"`
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId"`
	Text           string `json:"text"`
	SenderUsername string `json:"senderUsername"`
}

// NewMessage builds the outbound frame for an accepted inbound message.
func NewMessage(in Inbound) Message {
	return Message{
		Type:           TypeMessage,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Text:           in.Text,
		SenderUsername: in.SenderUsername,
	}
}

// Error is sent back to a client whose frame was rejected.
type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError builds an error frame.
func NewError(code, msg string) Error {
	return Error{Type: TypeError, Code: code, Message: msg}
}
