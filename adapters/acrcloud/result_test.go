package acrcloud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		code    int
		title   string
		artists []string
		wantErr bool
	}{
		{
			name:    "music match",
			payload: MockResultPayload,
			code:    StatusSuccess,
			title:   "Mock Song",
			artists: []string{"Mock Artist"},
		},
		{
			name:    "humming match",
			payload: `{"status":{"msg":"Success","code":0},"metadata":{"humming":[{"title":"Hummed","artists":[{"name":"A"},{"name":"B"}]}]}}`,
			code:    StatusSuccess,
			title:   "Hummed",
			artists: []string{"A", "B"},
		},
		{
			name:    "no result",
			payload: `{"status":{"msg":"No result","code":1001,"version":"1.0"}}`,
			code:    StatusNoResult,
		},
		{
			name:    "not json",
			payload: "oops",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := ParseResult(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.code, summary.StatusCode)
			assert.Equal(t, tt.title, summary.Title)
			assert.Equal(t, tt.artists, summary.Artists)
		})
	}
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, StatusNoResult, statusCode(errorPayload(StatusNoResult, "No result")))
	assert.Equal(t, StatusSuccess, statusCode(MockResultPayload))
	assert.Equal(t, -1, statusCode("{"))
}
