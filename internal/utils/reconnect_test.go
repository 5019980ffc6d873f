package utils_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/satconnect/go-sdk/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestReconnectPolicyNextDelay(t *testing.T) {
	policy := utils.ReconnectPolicy{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}

	require.Equal(t, time.Second, policy.NextDelay(0))
	require.Equal(t, 2*time.Second, policy.NextDelay(1))
	require.Equal(t, 4*time.Second, policy.NextDelay(2))
	require.Equal(t, 8*time.Second, policy.NextDelay(3))
	// Capped at MaxDelay from there on.
	require.Equal(t, 10*time.Second, policy.NextDelay(4))
	require.Equal(t, 10*time.Second, policy.NextDelay(20))
}

func TestShouldReconnect(t *testing.T) {
	fixtures := []struct {
		name      string
		err       error
		reconnect bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"connection closed locally", net.ErrClosed, false},
		{
			"normal close",
			&websocket.CloseError{Code: websocket.CloseNormalClosure},
			false,
		},
		{
			"going away",
			&websocket.CloseError{Code: websocket.CloseGoingAway},
			false,
		},
		{
			"abnormal close",
			&websocket.CloseError{Code: websocket.CloseAbnormalClosure},
			true,
		},
		{"gateway timeout", fmt.Errorf("unexpected status 524"), true},
		{"generic network error", fmt.Errorf("connection reset by peer"), true},
	}

	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			require.Equal(t, f.reconnect, utils.ShouldReconnect(f.err))
		})
	}
}
