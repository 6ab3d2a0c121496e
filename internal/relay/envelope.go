package relay

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Frame event names. Clients send joinChat and sendMessage; the relay
// answers with newMessage and error.
const (
	EventJoinChat    = "joinChat"
	EventSendMessage = "sendMessage"
	EventNewMessage  = "newMessage"
	EventError       = "error"
)

// Envelope is the wire format of every websocket frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type sendMessageData struct {
	ChatID  chatID `json:"chat_id"`
	Content string `json:"content"`
}

type errorData struct {
	Message string `json:"message"`
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// chatID accepts a chat id sent either as a JSON number or as a numeric
// string; browser clients send both.
type chatID int64

func (id *chatID) UnmarshalJSON(b []byte) error {
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*id = chatID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("chat id must be a number: %w", err)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("chat id must be a number: %w", err)
	}
	*id = chatID(n)
	return nil
}

// Room is the name of the broadcast group for a chat.
func Room(id int64) string {
	return "chat_" + strconv.FormatInt(id, 10)
}
