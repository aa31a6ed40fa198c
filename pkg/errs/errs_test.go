package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := NotFoundf("no post with id (%d)", 42)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))
	assert.Contains(t, err.Error(), "no post with id (42)")

	assert.True(t, errors.Is(Validationf("bad input"), ErrValidation))
	assert.True(t, errors.Is(Forbiddenf("not yours"), ErrForbidden))
	assert.True(t, errors.Is(Conflictf("already reported"), ErrConflict))
}
