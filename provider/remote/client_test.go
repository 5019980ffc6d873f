package remote_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/satconnect/go-sdk/provider"
	"github.com/satconnect/go-sdk/provider/remote"
	"github.com/satconnect/go-sdk/types"
	"github.com/stretchr/testify/require"
)

// fakeBridge is an in-process wallet agent speaking the bridge protocol over
// a websocket. Handlers are keyed by method name; a missing handler yields an
// rpc error response.
type fakeBridge struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	handlers map[string]func(params map[string]any) (map[string]any, *bridgeError)
}

type bridgeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type bridgeMessage struct {
	ID     uint64         `json:"id,omitempty"`
	Method string         `json:"method,omitempty"`
	Params map[string]any `json:"params,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Error  *bridgeError   `json:"error,omitempty"`
}

func newFakeBridge(t *testing.T, network string, capabilities []string) *fakeBridge {
	bridge := &fakeBridge{
		t:        t,
		handlers: make(map[string]func(map[string]any) (map[string]any, *bridgeError)),
	}
	bridge.handle("handshake", func(_ map[string]any) (map[string]any, *bridgeError) {
		return map[string]any{
			"network":      network,
			"capabilities": capabilities,
		}, nil
	})
	bridge.handle("disconnect", func(_ map[string]any) (map[string]any, *bridgeError) {
		return map[string]any{}, nil
	})

	bridge.server = httptest.NewServer(http.HandlerFunc(bridge.serve))
	t.Cleanup(bridge.server.Close)
	return bridge
}

func (b *fakeBridge) url() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

func (b *fakeBridge) handle(
	method string, fn func(params map[string]any) (map[string]any, *bridgeError),
) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[method] = fn
}

func (b *fakeBridge) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		req := bridgeMessage{}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		b.mu.Lock()
		handler, ok := b.handlers[req.Method]
		b.mu.Unlock()

		resp := bridgeMessage{ID: req.ID}
		if !ok {
			resp.Error = &bridgeError{Code: -32601, Message: "unknown method"}
		} else {
			result, rpcErr := handler(req.Params)
			if rpcErr != nil {
				resp.Error = rpcErr
			} else {
				resp.Result = result
			}
		}
		buf, _ := json.Marshal(resp)
		if err := conn.WriteMessage(websocket.TextMessage, buf); err != nil {
			return
		}
	}
}

func TestNewProvider(t *testing.T) {
	_, err := remote.NewProvider("")
	require.EqualError(t, err, "missing bridge url")

	prvdr, err := remote.NewProvider("ws://localhost:9999")
	require.NoError(t, err)
	require.NotNil(t, prvdr)
	require.Equal(t, provider.RemoteProvider, prvdr.Type())
}

func TestConnectHandshake(t *testing.T) {
	bridge := newFakeBridge(t, "signet", []string{
		"sign_message", "sign_psbt", "switch_network",
	})

	prvdr, err := remote.NewProvider(bridge.url())
	require.NoError(t, err)
	defer prvdr.Close()

	ctx := context.Background()
	require.NoError(t, prvdr.Connect(ctx))

	caps := prvdr.Capabilities()
	require.True(t, caps.SignMessage)
	require.True(t, caps.SignPsbt)
	require.True(t, caps.SwitchNetwork)
	require.False(t, caps.TaprootKeySpend)
	require.False(t, caps.MultipleAccounts)

	// Connecting an established session is a no-op.
	require.NoError(t, prvdr.Connect(ctx))

	require.NoError(t, prvdr.Disconnect(ctx))
}

func TestCallsRequireConnection(t *testing.T) {
	prvdr, err := remote.NewProvider("ws://localhost:9999")
	require.NoError(t, err)

	_, err = prvdr.Addresses(context.Background())
	require.ErrorIs(t, err, provider.ErrProviderNotConnected)
}

func TestStatus(t *testing.T) {
	bridge := newFakeBridge(t, "regtest", nil)
	bridge.handle("status", func(_ map[string]any) (map[string]any, *bridgeError) {
		return map[string]any{"initialized": true, "unlocked": true}, nil
	})

	prvdr, err := remote.NewProvider(bridge.url())
	require.NoError(t, err)
	defer prvdr.Close()

	ctx := context.Background()

	// Before connecting, the status is reported without touching the bridge.
	status, err := prvdr.Status(ctx)
	require.NoError(t, err)
	require.False(t, status.Connected)

	require.NoError(t, prvdr.Connect(ctx))
	status, err = prvdr.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Connected)
	require.True(t, status.Initialized)
	require.True(t, status.Unlocked)
}

func TestAddresses(t *testing.T) {
	bridge := newFakeBridge(t, "regtest", nil)
	bridge.handle("get_addresses", func(_ map[string]any) (map[string]any, *bridgeError) {
		return map[string]any{
			"addresses": []map[string]any{
				{"address": "bcrt1qxxxx", "type": "p2wpkh"},
				{"address": "bcrt1pxxxx", "type": "p2tr"},
			},
		}, nil
	})
	bridge.handle("new_address", func(params map[string]any) (map[string]any, *bridgeError) {
		change, _ := params["change"].(bool)
		if change {
			return map[string]any{"address": "bcrt1pchange", "type": "p2tr"}, nil
		}
		return map[string]any{"address": "bcrt1preceive", "type": "p2tr"}, nil
	})

	prvdr, err := remote.NewProvider(bridge.url())
	require.NoError(t, err)
	defer prvdr.Close()

	ctx := context.Background()
	require.NoError(t, prvdr.Connect(ctx))

	addresses, err := prvdr.Addresses(ctx)
	require.NoError(t, err)
	require.Len(t, addresses, 2)
	require.Equal(t, types.AddressP2WPKH, addresses[0].Type)
	require.Equal(t, types.AddressP2TR, addresses[1].Type)

	addr, err := prvdr.NewAddress(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "bcrt1preceive", addr.Address)

	addr, err = prvdr.NewAddress(ctx, true)
	require.NoError(t, err)
	require.Equal(t, "bcrt1pchange", addr.Address)
}

func TestSignMessage(t *testing.T) {
	bridge := newFakeBridge(t, "regtest", []string{"sign_message"})
	bridge.handle("sign_message", func(params map[string]any) (map[string]any, *bridgeError) {
		msgHex, ok := params["message"].(string)
		if !ok {
			return nil, &bridgeError{Code: -32602, Message: "missing message"}
		}
		msg, err := hex.DecodeString(msgHex)
		if err != nil {
			return nil, &bridgeError{Code: -32602, Message: "malformed message"}
		}
		return map[string]any{
			"signature": fmt.Sprintf("signed(%s)", msg),
		}, nil
	})

	prvdr, err := remote.NewProvider(bridge.url())
	require.NoError(t, err)
	defer prvdr.Close()

	ctx := context.Background()
	require.NoError(t, prvdr.Connect(ctx))

	sig, err := prvdr.SignMessage(ctx, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, "signed(hello)", sig)
}

func TestCapabilityGating(t *testing.T) {
	bridge := newFakeBridge(t, "regtest", nil)

	prvdr, err := remote.NewProvider(bridge.url())
	require.NoError(t, err)
	defer prvdr.Close()

	ctx := context.Background()
	require.NoError(t, prvdr.Connect(ctx))

	_, err = prvdr.SignMessage(ctx, []byte("hello"))
	require.ErrorIs(t, err, provider.ErrCapabilityNotSupported)

	err = prvdr.SwitchNetwork(ctx, types.BitcoinSigNet)
	require.ErrorIs(t, err, provider.ErrCapabilityNotSupported)
}

func TestSwitchNetwork(t *testing.T) {
	bridge := newFakeBridge(t, "regtest", []string{"switch_network"})
	var gotNetwork string
	bridge.handle("switch_network", func(params map[string]any) (map[string]any, *bridgeError) {
		gotNetwork, _ = params["network"].(string)
		return map[string]any{}, nil
	})
	bridge.handle("get_network", func(_ map[string]any) (map[string]any, *bridgeError) {
		return map[string]any{"network": gotNetwork}, nil
	})

	prvdr, err := remote.NewProvider(bridge.url())
	require.NoError(t, err)
	defer prvdr.Close()

	ctx := context.Background()
	require.NoError(t, prvdr.Connect(ctx))

	require.NoError(t, prvdr.SwitchNetwork(ctx, types.BitcoinSigNet))
	require.Equal(t, types.BitcoinSigNet.Name, gotNetwork)

	net, err := prvdr.Network(ctx)
	require.NoError(t, err)
	require.Equal(t, types.BitcoinSigNet.Name, net.Name)
}

func TestBridgeErrorPropagation(t *testing.T) {
	bridge := newFakeBridge(t, "regtest", nil)

	prvdr, err := remote.NewProvider(bridge.url())
	require.NoError(t, err)
	defer prvdr.Close()

	ctx := context.Background()
	require.NoError(t, prvdr.Connect(ctx))

	// No get_addresses handler registered: the bridge answers with an error.
	_, err = prvdr.Addresses(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown method")
}

func TestCallTimeout(t *testing.T) {
	bridge := newFakeBridge(t, "regtest", nil)
	bridge.handle("get_addresses", func(_ map[string]any) (map[string]any, *bridgeError) {
		time.Sleep(time.Second)
		return map[string]any{}, nil
	})

	prvdr, err := remote.NewProvider(
		bridge.url(), remote.WithCallTimeout(100*time.Millisecond),
	)
	require.NoError(t, err)
	defer prvdr.Close()

	ctx := context.Background()
	require.NoError(t, prvdr.Connect(ctx))

	_, err = prvdr.Addresses(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
}
