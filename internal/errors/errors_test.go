package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TS01: New derives category, severity, and retryability from the code
func TestNew_DerivedFields(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeNoteNotFound, CategoryIO, SeverityError, false},
		{ErrCodeDataDirLock, CategoryIO, SeverityFatal, false},
		{ErrCodeProviderTimeout, CategoryNetwork, SeverityWarning, true},
		{ErrCodeParse, CategoryValidation, SeverityWarning, false},
		{ErrCodeEmbeddingFailed, CategoryInternal, SeverityWarning, true},
		{ErrCodeInternal, CategoryInternal, SeverityError, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

// TS02: Error string includes the code and message
func TestSageError_Error(t *testing.T) {
	err := New(ErrCodeNoteNotFound, "note \"x\" not found", nil)
	assert.Equal(t, `[ERR_201_NOTE_NOT_FOUND] note "x" not found`, err.Error())
}

// TS03: Wrap preserves the cause through the errors chain
func TestWrap(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := Wrap(ErrCodeFileRead, cause)

	require.NotNil(t, err)
	assert.Equal(t, "disk on fire", err.Message)
	assert.ErrorIs(t, err, cause)

	assert.Nil(t, Wrap(ErrCodeFileRead, nil))
}

// TS04: errors.Is matches SageErrors by code
func TestSageError_Is(t *testing.T) {
	a := New(ErrCodeNoteNotFound, "first", nil)
	b := New(ErrCodeNoteNotFound, "second", nil)
	c := New(ErrCodeFileRead, "other", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

// TS05: Helper constructors carry the right codes
func TestConstructors(t *testing.T) {
	assert.Equal(t, ErrCodeNoteNotFound, NotFound("x").Code)
	assert.Equal(t, ErrCodeParse, ParseError("bad yaml", nil).Code)
	assert.Equal(t, ErrCodeEmbeddingFailed, EmbeddingError("embed", nil).Code)
	assert.Equal(t, ErrCodeIndexWrite, IndexWriteError("upsert", nil).Code)
	assert.Equal(t, ErrCodeStaleGeneration, StaleGeneration("x").Code)

	assert.True(t, IsNotFound(NotFound("x")))
	assert.False(t, IsNotFound(ParseError("bad", nil)))
	assert.False(t, IsNotFound(nil))
}

// TS06: IsRetryable and GetCode on plain errors
func TestPlainErrors(t *testing.T) {
	plain := fmt.Errorf("plain")
	assert.False(t, IsRetryable(plain))
	assert.Empty(t, GetCode(plain))
	assert.False(t, IsRetryable(nil))

	assert.True(t, IsRetryable(EmbeddingError("embed", nil)))
	assert.Equal(t, ErrCodeDataDirLock, GetCode(New(ErrCodeDataDirLock, "locked", nil)))
}

// TS07: WithDetail chains and accumulates
func TestWithDetail(t *testing.T) {
	err := New(ErrCodeFileRead, "read failed", nil).
		WithDetail("path", "/notes/a.md").
		WithDetail("size", "120")

	assert.Equal(t, "/notes/a.md", err.Details["path"])
	assert.Equal(t, "120", err.Details["size"])
}
