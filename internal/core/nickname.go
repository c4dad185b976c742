package core

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxNicknameLen is the longest nickname accepted, in runes.
	MaxNicknameLen = 24
	// CommandPrefix starts every client command; nicknames may not use it.
	CommandPrefix = "/"
)

// ValidateNickname checks the handshake rules for a nickname.
func ValidateNickname(name string) error {
	switch {
	case name == "":
		return HandshakeError(ErrCodeInvalidNickname, fmt.Errorf("%w: empty", ErrInvalidNickname))
	case utf8.RuneCountInString(name) > MaxNicknameLen:
		return HandshakeError(ErrCodeInvalidNickname,
			fmt.Errorf("%w: longer than %d characters", ErrInvalidNickname, MaxNicknameLen))
	case strings.IndexFunc(name, unicode.IsSpace) >= 0:
		return HandshakeError(ErrCodeInvalidNickname, fmt.Errorf("%w: contains whitespace", ErrInvalidNickname))
	case strings.HasPrefix(name, CommandPrefix):
		return HandshakeError(ErrCodeInvalidNickname,
			fmt.Errorf("%w: starts with %q", ErrInvalidNickname, CommandPrefix))
	}
	return nil
}
