package chat

// MessageAction is one labeled button on a choice menu. Tapping it delivers
// Token back as an ActionEvent.
type MessageAction struct {
	Label string
	Token string
}

// Message is outbound content: plain text when Actions is empty, otherwise a
// choice menu with a title, body and up to a transport-defined number of
// buttons. Transports render this however their wire format allows.
type Message struct {
	Title   string
	Body    string
	Actions []MessageAction
}

// Text builds a plain-text message.
func Text(body string) Message {
	return Message{Body: body}
}

// Menu builds a choice-menu message.
func Menu(title, body string, actions ...MessageAction) Message {
	return Message{Title: title, Body: body, Actions: actions}
}

// Button builds one menu action.
func Button(label string, verb ActionVerb, args ...string) MessageAction {
	return MessageAction{Label: label, Token: Token(verb, args...)}
}

// IsMenu reports whether the message carries buttons.
func (m Message) IsMenu() bool { return len(m.Actions) > 0 }
