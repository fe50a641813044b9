package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChoice(t *testing.T) {
	tests := []struct {
		raw     string
		want    Choice
		wantErr bool
	}{
		{raw: "a", want: ChoiceA},
		{raw: "b", want: ChoiceB},
		{raw: "", wantErr: true},
		{raw: "c", wantErr: true},
		{raw: "A", wantErr: true},
		{raw: "ab", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("raw=%q", tt.raw), func(t *testing.T) {
			got, err := ParseChoice(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidChoice)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewTally_TotalInvariant(t *testing.T) {
	tally := NewTally(3, 4)
	assert.Equal(t, int64(3), tally.CountA)
	assert.Equal(t, int64(4), tally.CountB)
	assert.Equal(t, int64(7), tally.Total)

	zero := NewTally(0, 0)
	assert.Equal(t, int64(0), zero.Total)
}

func TestTally_JSONShape(t *testing.T) {
	data, err := json.Marshal(NewTally(1, 2))
	require.NoError(t, err)
	assert.JSONEq(t, `{"count_a":1,"count_b":2,"total":3}`, string(data))
}

func TestMalformedEventError_Unwrap(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := &MalformedEventError{Payload: []byte("{"), Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsMalformed(err))
	assert.False(t, IsMalformed(cause))
	assert.Contains(t, err.Error(), "malformed vote event")
}
