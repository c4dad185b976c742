package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNickname(t *testing.T) {
	valid := []string{"Alice", "bob_42", strings.Repeat("x", MaxNicknameLen), "닉네임", "a/b"}
	for _, name := range valid {
		assert.NoError(t, ValidateNickname(name), name)
	}

	invalid := []string{
		"",
		strings.Repeat("x", MaxNicknameLen+1),
		"two words",
		"tab\there",
		"/quit",
		"/w",
	}
	for _, name := range invalid {
		err := ValidateNickname(name)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrInvalidNickname), name)
		assert.Equal(t, KindHandshake, KindOf(err), name)
	}
}

func TestNicknameLengthCountsRunes(t *testing.T) {
	name := strings.Repeat("가", MaxNicknameLen)
	assert.Greater(t, len(name), MaxNicknameLen)
	assert.NoError(t, ValidateNickname(name))
}
