package chatv1

import (
	"chat-broker/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestReadGetMessages(t *testing.T) {
	before := time.Date(2026, 3, 1, 10, 0, 0, 42, time.UTC)

	tests := []struct {
		name       string
		fields     map[string]any
		wantLimit  int
		wantBefore *time.Time
		wantErr    error
	}{
		{"defaults", map[string]any{"channel": "dsa"}, 0, nil, nil},
		{"limit and cursor", map[string]any{"channel": "dsa", "limit": 20, "before": before.Format(time.RFC3339Nano)}, 20, &before, nil},
		{"negative limit", map[string]any{"channel": "dsa", "limit": -1}, 0, nil, errors.ErrInvalidRequest},
		{"fractional limit", map[string]any{"channel": "dsa", "limit": 2.5}, 0, nil, errors.ErrInvalidRequest},
		{"bad cursor", map[string]any{"channel": "dsa", "before": "yesterday"}, 0, nil, errors.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			in, err := structpb.NewStruct(tt.fields)
			req.NoError(err)

			channel, gotBefore, limit, err := ReadGetMessages(in)

			if tt.wantErr != nil {
				req.ErrorIs(err, tt.wantErr)
				return
			}
			req.NoError(err)
			req.Equal("dsa", channel)
			req.Equal(tt.wantLimit, limit)
			if tt.wantBefore == nil {
				req.Nil(gotBefore)
			} else {
				req.True(tt.wantBefore.Equal(*gotBefore))
			}
		})
	}
}

func TestGetMessagesRequest_Keeps_Negative_Limit(t *testing.T) {
	req := require.New(t)
	in, err := GetMessagesRequest("dsa", nil, -5)
	req.NoError(err)

	_, _, _, err = ReadGetMessages(in)

	req.ErrorIs(err, errors.ErrInvalidRequest)
}
