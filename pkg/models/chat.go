package models

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is one turn in a conversational session.
type ChatMessage struct {
	Sender  Sender `json:"sender"`
	Text    string `json:"text"`
	Pending bool   `json:"pending,omitempty"`
	Error   bool   `json:"error,omitempty"`
}

// View is the screen the user is on; it shapes the assistant's context.
type View string

const (
	ViewDashboard View = "dashboard"
	ViewReport    View = "report"
	ViewPest      View = "pest"
	ViewWeather   View = "weather"
	ViewYield     View = "yield"
	ViewCommunity View = "community"
	ViewBot       View = "bot"
)

// Language is a BCP 47 tag for the chat language.
type Language string

const (
	LanguageEnglish Language = "en-US"
	LanguageHindi   Language = "hi-IN"
	LanguageKannada Language = "kn-IN"
)

// ChatEventType is the type of a streamed chat event.
type ChatEventType string

const (
	ChatEventText   ChatEventType = "text"
	ChatEventStatus ChatEventType = "status"
	ChatEventDone   ChatEventType = "done"
	ChatEventError  ChatEventType = "error"
	// ChatEventReset tells the client to discard reply text streamed so far.
	ChatEventReset  ChatEventType = "reset"
)

// ChatEvent is one event emitted while a chat turn is in flight.
type ChatEvent struct {
	Type    ChatEventType `json:"type"`
	Content string        `json:"content,omitempty"`
}

func NewTextEvent(content string) ChatEvent {
	return ChatEvent{Type: ChatEventText, Content: content}
}

func NewStatusEvent(content string) ChatEvent {
	return ChatEvent{Type: ChatEventStatus, Content: content}
}

func NewDoneEvent(content string) ChatEvent {
	return ChatEvent{Type: ChatEventDone, Content: content}
}

func NewResetEvent() ChatEvent {
	return ChatEvent{Type: ChatEventReset}
}

func NewErrorEvent(message string) ChatEvent {
	return ChatEvent{Type: ChatEventError, Content: message}
}
