package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"malformed", fmt.Errorf("sample a: %w", ErrMalformedInput), KindMalformed},
		{"insufficient", fmt.Errorf("%w: 1 point", ErrInsufficientInput), KindInsufficient},
		{"computation", fmt.Errorf("wrap: %w", fmt.Errorf("inner: %w", ErrComputation)), KindComputation},
		{"other", errors.New("boom"), KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestSkippable(t *testing.T) {
	assert.True(t, Skippable(ErrMalformedInput))
	assert.True(t, Skippable(fmt.Errorf("x: %w", ErrInsufficientInput)))
	assert.False(t, Skippable(ErrComputation))
	assert.False(t, Skippable(errors.New("boom")))
	assert.False(t, Skippable(nil))
}
