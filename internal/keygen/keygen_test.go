package keygen

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/internal/shared"
	_ "github.com/gatewarden/gatewarden/testing"
)

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

func TestGenerateLengthAndPrefix(t *testing.T) {
	token, err := Generate(32, "AK")
	require.NoError(t, err)
	assert.Len(t, token, len("AK")+1+32)
	assert.True(t, strings.HasPrefix(token, "AK_"))

	bare, err := Generate(16, "")
	require.NoError(t, err)
	assert.Len(t, bare, 16)
}

func TestGenerateAlphabet(t *testing.T) {
	token, err := Generate(256, "")
	require.NoError(t, err)
	for _, r := range token {
		assert.Containsf(t, Alphabet, string(r), "unexpected character %q", r)
	}
}

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token, err := Generate(32, "SK")
		require.NoError(t, err)
		_, dup := seen[token]
		require.Falsef(t, dup, "duplicate token %s", token)
		seen[token] = struct{}{}
	}
}

func TestGenerateInvalidLength(t *testing.T) {
	for _, length := range []int{0, -1, -100} {
		_, err := Generate(length, "AK")
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	}
}

func TestIsExpiredBoundary(t *testing.T) {
	createdAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	justBefore := fakeClock{now: createdAt.Add(89 * 24 * time.Hour)}
	assert.False(t, IsExpired(justBefore, createdAt, 90))

	exactly := fakeClock{now: createdAt.Add(90 * 24 * time.Hour)}
	assert.True(t, IsExpired(exactly, createdAt, 90), "boundary is inclusive")

	after := fakeClock{now: createdAt.Add(91 * 24 * time.Hour)}
	assert.True(t, IsExpired(after, createdAt, 90))
}

func TestIsExpiredDefaultsToSystemClock(t *testing.T) {
	assert.False(t, IsExpired(nil, time.Now(), 90))
	assert.True(t, IsExpired(nil, time.Now().Add(-91*24*time.Hour), 90))
}
