package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexIDUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    flexID
		wantErr bool
	}{
		{`7`, 7, false},
		{`"12"`, 12, false},
		{`" 3 "`, 3, false},
		{`"abc"`, 0, true},
		{`true`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got flexID
			err := json.Unmarshal([]byte(tt.in), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextID(t *testing.T) {
	id := func(o Order) int { return o.ID }
	assert.Equal(t, 1, nextID(nil, id))
	assert.Equal(t, 8, nextID([]Order{{ID: 7}, {ID: 2}}, id))
}

func TestProductPriceIsJSONNumber(t *testing.T) {
	b, err := json.Marshal(defaultProducts()[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"price":79.99`)
}
