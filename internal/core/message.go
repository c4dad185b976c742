package core

import "fmt"

// MessageKind tells how a message is rendered on the wire.
type MessageKind int

const (
	// MessageBroadcast is a room-wide line from a user.
	MessageBroadcast MessageKind = iota
	// MessageWhisper is a private line relayed to its target.
	MessageWhisper
	// MessageWhisperReceipt echoes a delivered whisper back to its sender.
	MessageWhisperReceipt
	// MessageSystem is a server notice.
	MessageSystem
)

// Message is a transient chat message. It is never stored.
type Message struct {
	Kind   MessageKind
	Sender string
	Target string
	Body   string
}

// Broadcast builds a room-wide message.
func Broadcast(sender, body string) Message {
	return Message{Kind: MessageBroadcast, Sender: sender, Body: body}
}

// Whisper builds a private message.
func Whisper(sender, target, body string) Message {
	return Message{Kind: MessageWhisper, Sender: sender, Target: target, Body: body}
}

// WhisperReceipt builds the confirmation shown to a whisper's sender.
func WhisperReceipt(sender, target, body string) Message {
	return Message{Kind: MessageWhisperReceipt, Sender: sender, Target: target, Body: body}
}

// System builds a server notice.
func System(body string) Message {
	return Message{Kind: MessageSystem, Body: body}
}

// Format renders the message as a single newline-terminated line.
func (m Message) Format() string {
	switch m.Kind {
	case MessageWhisper:
		return fmt.Sprintf("(whisper)%s> %s\n", m.Sender, m.Body)
	case MessageWhisperReceipt:
		return fmt.Sprintf("(whisper)->%s: %s\n", m.Target, m.Body)
	case MessageSystem:
		return fmt.Sprintf("[SYSTEM] %s\n", m.Body)
	default:
		return fmt.Sprintf("%s> %s\n", m.Sender, m.Body)
	}
}

// System notices.
const (
	NoticeInvalidNickname = "invalid nickname"
	NoticeNicknameInUse   = "nickname in use"
	NoticeTargetNotFound  = "target not found"
	NoticeClosing         = "closing connection"
	NoticeShuttingDown    = "server shutting down"
)

// JoinNotice announces a newly registered session.
func JoinNotice(nickname string) Message {
	return System(nickname + " joined")
}

// LeftNotice announces the removal of a registered session.
func LeftNotice(nickname string) Message {
	return System(nickname + " left")
}

// UsageNotice explains the whisper syntax.
func UsageNotice() Message {
	return System(fmt.Sprintf("usage: %s <target> <message>", WhisperPrefixes[0]))
}

// HelpNotices are sent to a session right after it joins.
func HelpNotices() []Message {
	return []Message{
		System(fmt.Sprintf("whisper: %s <target> <message>", WhisperPrefixes[0])),
		System("quit: " + QuitCommand),
	}
}
