package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by how far their effect is allowed to reach.
type ErrorKind int

const (
	// KindTransport covers read/write failures and anything unclassified.
	KindTransport ErrorKind = iota
	// KindHandshake rejects a single connection before it is registered.
	KindHandshake
	// KindProtocol is reported to the sender only; the session continues.
	KindProtocol
	// KindStartup prevents the server from serving at all.
	KindStartup
)

func (k ErrorKind) String() string {
	switch k {
	case KindHandshake:
		return "handshake"
	case KindProtocol:
		return "protocol"
	case KindStartup:
		return "startup"
	default:
		return "transport"
	}
}

// Error codes for domain errors.
const (
	ErrCodeInvalidNickname = "invalid_nickname"
	ErrCodeNicknameInUse   = "nickname_in_use"
	ErrCodeBadWhisper      = "bad_whisper"
	ErrCodeTargetNotFound  = "target_not_found"
	ErrCodeTransport       = "transport"
	ErrCodeStartup         = "startup"
)

var (
	ErrInvalidNickname = errors.New("invalid nickname")
	ErrNicknameInUse   = errors.New("nickname in use")
	ErrTargetNotFound  = errors.New("target not found")
	ErrSessionClosed   = errors.New("session closed")
	ErrLineTooLong     = errors.New("line too long")
)

// CoreError wraps a kind, a code and a human-readable message.
type CoreError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func coreError(kind ErrorKind, code, msg string, err error) *CoreError {
	return &CoreError{Kind: kind, Code: code, Message: msg, Err: err}
}

// HandshakeError builds a handshake rejection for the given code.
func HandshakeError(code string, err error) *CoreError {
	return coreError(KindHandshake, code, "handshake rejected", err)
}

// ProtocolError builds an error that is reported back to the sender only.
func ProtocolError(code string, err error) *CoreError {
	return coreError(KindProtocol, code, "protocol error", err)
}

// TransportError wraps an I/O failure of a single session.
func TransportError(err error) *CoreError {
	return coreError(KindTransport, ErrCodeTransport, "transport failure", err)
}

// StartupError wraps a failure to begin serving.
func StartupError(err error) *CoreError {
	return coreError(KindStartup, ErrCodeStartup, "startup failure", err)
}

// KindOf reports the kind of err. Errors that carry no classification are
// treated as transport failures.
func KindOf(err error) ErrorKind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransport
}
