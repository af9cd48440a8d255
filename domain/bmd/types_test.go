package bmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBMDLState_String(t *testing.T) {
	assert.Equal(t, "converged", BMDLConverged.String())
	assert.Equal(t, "failed", BMDLFailed.String())
	assert.Equal(t, "max_iter_exceeded", BMDLMaxIterExceeded.String())

	var zero BMDLState
	assert.Equal(t, "unknown", zero.String(), "zero value is not a terminal state")
	assert.False(t, BMDLResult{}.Converged())
}
