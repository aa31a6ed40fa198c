package utils

import (
	"errors"
	"strings"
	"testing"

	"socialnet/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateString(t *testing.T) {
	trimmed, err := ValidateString("  hello  ", "post text")
	require.NoError(t, err)
	assert.Equal(t, "hello", trimmed)

	_, err = ValidateString("", "post text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = ValidateString("   ", "post text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestValidateBoundedString(t *testing.T) {
	trimmed, err := ValidateBoundedString("hello", "post text", 10)
	require.NoError(t, err)
	assert.Equal(t, "hello", trimmed)

	// boundary: exactly at the cap is accepted
	_, err = ValidateBoundedString(strings.Repeat("a", 10), "post text", 10)
	require.NoError(t, err)

	_, err = ValidateBoundedString(strings.Repeat("a", 11), "post text", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	// the cap counts runes, not bytes
	_, err = ValidateBoundedString(strings.Repeat("é", 10), "post text", 10)
	require.NoError(t, err)

	_, err = ValidateBoundedString(strings.Repeat("é", 11), "post text", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestHashMacAddressPid(t *testing.T) {
	machineID := HashMacAddressPid("aa:bb:cc:dd:ee:ff")
	assert.Len(t, machineID, 3)
}

func TestGenUniqueID(t *testing.T) {
	id, err := GenUniqueID("123", 123456789, 1)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	// ids differ across counters for the same timestamp
	id2, err := GenUniqueID("123", 123456789, 2)
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)

	// and differ across timestamps for the same counter
	id3, err := GenUniqueID("123", 123456790, 1)
	require.NoError(t, err)
	assert.NotEqual(t, id, id3)
}
