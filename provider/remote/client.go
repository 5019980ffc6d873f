// Package remote implements a wallet provider speaking to an external
// signing agent, the browser-extension analogue, over a WebSocket bridge.
package remote

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/gorilla/websocket"
	"github.com/satconnect/go-sdk/internal/utils"
	"github.com/satconnect/go-sdk/provider"
	"github.com/satconnect/go-sdk/txbuilder"
	"github.com/satconnect/go-sdk/types"
	log "github.com/sirupsen/logrus"
)

const (
	defaultCallTimeout = 30 * time.Second
	handshakeTimeout   = 10 * time.Second
)

type remoteProvider struct {
	url         string
	callTimeout time.Duration

	mu        sync.RWMutex
	conn      *websocket.Conn
	writeMu   sync.Mutex
	nextID    atomic.Uint64
	pending   map[uint64]chan response
	pendingMu sync.Mutex
	caps      provider.Capabilities
	net       types.Network
	stopRead  func()
	closed    bool
}

type Option func(*remoteProvider)

func WithCallTimeout(timeout time.Duration) Option {
	return func(p *remoteProvider) {
		p.callTimeout = timeout
	}
}

// NewProvider returns a provider bridging to the wallet agent listening at
// the given ws:// or wss:// URL. The session is established by Connect.
func NewProvider(url string, opts ...Option) (provider.Provider, error) {
	if url == "" {
		return nil, fmt.Errorf("missing bridge url")
	}

	svc := &remoteProvider{
		url:         url,
		callTimeout: defaultCallTimeout,
		pending:     make(map[uint64]chan response),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (p *remoteProvider) Type() string {
	return provider.RemoteProvider
}

func (p *remoteProvider) Capabilities() provider.Capabilities {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.caps
}

// Connect dials the bridge and performs the capability handshake. The
// session's capability set and active network are negotiated here.
func (p *remoteProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	if p.conn != nil {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial wallet bridge: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.conn = conn
	p.stopRead = cancel
	p.closed = false
	p.mu.Unlock()

	go p.readLoop(readCtx)

	raw, err := p.call(ctx, methodHandshake, nil)
	if err != nil {
		_ = p.Disconnect(ctx)
		return fmt.Errorf("handshake failed: %w", err)
	}

	handshake := handshakeResult{}
	if err := decodeResult(raw, &handshake); err != nil {
		_ = p.Disconnect(ctx)
		return err
	}

	p.mu.Lock()
	p.net = types.NetworkFromString(handshake.Network)
	p.caps = capabilitiesFromList(handshake.Capabilities)
	p.mu.Unlock()

	log.WithField("url", p.url).Debugf(
		"remote: session established on network %s", handshake.Network,
	)
	return nil
}

func (p *remoteProvider) Disconnect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeSessionLocked()
}

func (p *remoteProvider) closeSessionLocked() error {
	if p.conn == nil {
		return nil
	}
	if p.stopRead != nil {
		p.stopRead()
	}
	err := p.conn.Close()
	p.conn = nil
	p.closed = true

	p.pendingMu.Lock()
	for id, ch := range p.pending {
		close(ch)
		delete(p.pending, id)
	}
	p.pendingMu.Unlock()
	return err
}

func (p *remoteProvider) Status(ctx context.Context) (provider.Status, error) {
	p.mu.RLock()
	connected := p.conn != nil
	p.mu.RUnlock()
	if !connected {
		return provider.Status{}, nil
	}

	raw, err := p.call(ctx, methodStatus, nil)
	if err != nil {
		return provider.Status{}, err
	}
	status := statusResult{}
	if err := decodeResult(raw, &status); err != nil {
		return provider.Status{}, err
	}
	return provider.Status{
		Initialized: status.Initialized,
		Unlocked:    status.Unlocked,
		Connected:   true,
	}, nil
}

func (p *remoteProvider) Network(ctx context.Context) (types.Network, error) {
	raw, err := p.call(ctx, methodNetwork, nil)
	if err != nil {
		return types.Network{}, err
	}
	result := networkResult{}
	if err := decodeResult(raw, &result); err != nil {
		return types.Network{}, err
	}
	return types.NetworkFromString(result.Network), nil
}

func (p *remoteProvider) SwitchNetwork(ctx context.Context, net types.Network) error {
	if !p.Capabilities().SwitchNetwork {
		return provider.ErrCapabilityNotSupported
	}

	_, err := p.call(ctx, methodSwitchNetwork, map[string]any{
		"network": net.Name,
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.net = net
	p.mu.Unlock()
	return nil
}

func (p *remoteProvider) Addresses(ctx context.Context) ([]provider.Address, error) {
	raw, err := p.call(ctx, methodAddresses, nil)
	if err != nil {
		return nil, err
	}
	result := addressesResult{}
	if err := decodeResult(raw, &result); err != nil {
		return nil, err
	}

	addresses := make([]provider.Address, 0, len(result.Addresses))
	for _, addr := range result.Addresses {
		addrType := types.AddressP2WPKH
		if addr.Type == types.AddressP2TR.String() {
			addrType = types.AddressP2TR
		}
		addresses = append(addresses, provider.Address{
			Address: addr.Address,
			Type:    addrType,
		})
	}
	return addresses, nil
}

func (p *remoteProvider) NewAddress(ctx context.Context, change bool) (provider.Address, error) {
	raw, err := p.call(ctx, methodNewAddress, map[string]any{
		"change": change,
	})
	if err != nil {
		return provider.Address{}, err
	}
	result := addressResult{}
	if err := decodeResult(raw, &result); err != nil {
		return provider.Address{}, err
	}

	addrType := types.AddressP2WPKH
	if result.Type == types.AddressP2TR.String() {
		addrType = types.AddressP2TR
	}
	return provider.Address{Address: result.Address, Type: addrType}, nil
}

func (p *remoteProvider) PublicKey(ctx context.Context) (*btcec.PublicKey, error) {
	raw, err := p.call(ctx, methodPublicKey, nil)
	if err != nil {
		return nil, err
	}
	result := publicKeyResult{}
	if err := decodeResult(raw, &result); err != nil {
		return nil, err
	}

	pubKeyBytes, err := hex.DecodeString(result.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("malformed public key from bridge: %w", err)
	}
	return btcec.ParsePubKey(pubKeyBytes)
}

func (p *remoteProvider) SignMessage(ctx context.Context, message []byte) (string, error) {
	if !p.Capabilities().SignMessage {
		return "", provider.ErrCapabilityNotSupported
	}

	raw, err := p.call(ctx, methodSignMessage, map[string]any{
		"message": hex.EncodeToString(message),
	})
	if err != nil {
		return "", err
	}
	result := signMessageResult{}
	if err := decodeResult(raw, &result); err != nil {
		return "", err
	}
	return result.Signature, nil
}

func (p *remoteProvider) SignPsbt(
	ctx context.Context, packet *psbt.Packet, opts provider.SignPsbtOptions,
) (int, error) {
	if !p.Capabilities().SignPsbt {
		return 0, provider.ErrCapabilityNotSupported
	}

	psbtB64, err := txbuilder.EncodePacket(packet)
	if err != nil {
		return 0, err
	}

	params := map[string]any{"psbt": psbtB64}
	if len(opts.InputsToSign) > 0 {
		params["inputs_to_sign"] = opts.InputsToSign
	}

	raw, err := p.call(ctx, methodSignPsbt, params)
	if err != nil {
		return 0, err
	}
	result := signPsbtResult{}
	if err := decodeResult(raw, &result); err != nil {
		return 0, err
	}

	signed, err := txbuilder.ParsePacket(result.Psbt)
	if err != nil {
		return 0, fmt.Errorf("malformed psbt from bridge: %w", err)
	}

	// Merge the bridge's signatures into the caller's packet in place.
	merged, err := txbuilder.Combine(packet, signed)
	if err != nil {
		return 0, err
	}
	*packet = *merged

	return result.SignedInputs, nil
}

func (p *remoteProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	// nolint
	p.closeSessionLocked()
}

func (p *remoteProvider) call(
	ctx context.Context, method string, params map[string]any,
) (map[string]any, error) {
	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()
	if conn == nil {
		return nil, provider.ErrProviderNotConnected
	}

	id := p.nextID.Add(1)
	respCh := make(chan response, 1)
	p.pendingMu.Lock()
	p.pending[id] = respCh
	p.pendingMu.Unlock()
	defer func() {
		p.pendingMu.Lock()
		delete(p.pending, id)
		p.pendingMu.Unlock()
	}()

	p.writeMu.Lock()
	err := conn.WriteJSON(request{ID: id, Method: method, Params: params})
	p.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", method, err)
	}

	timeout := p.callTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%s request timed out after %s", method, timeout)
	case resp, ok := <-respCh:
		if !ok {
			return nil, provider.ErrSessionClosed
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

func (p *remoteProvider) readLoop(ctx context.Context) {
	attempt := 0
	for {
		p.mu.RLock()
		conn := p.conn
		p.mu.RUnlock()
		if conn == nil {
			return
		}

		resp := response{}
		if err := conn.ReadJSON(&resp); err != nil {
			if ctx.Err() != nil {
				return
			}
			if !utils.ShouldReconnect(err) {
				log.WithError(err).Debug("remote: bridge session closed")
				p.mu.Lock()
				// nolint
				p.closeSessionLocked()
				p.mu.Unlock()
				return
			}

			delay := utils.DefaultReconnectPolicy.NextDelay(attempt)
			log.WithError(err).Debugf(
				"remote: bridge read failed, redialing in %s", delay,
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if err := p.redial(ctx); err != nil {
				attempt++
				continue
			}
			attempt = 0
			continue
		}

		if resp.Method != "" {
			p.handleNotification(resp)
			continue
		}

		p.pendingMu.Lock()
		if ch, ok := p.pending[resp.ID]; ok {
			ch <- resp
		}
		p.pendingMu.Unlock()
	}
}

func (p *remoteProvider) redial(ctx context.Context) error {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.conn != nil {
		// nolint
		p.conn.Close()
	}
	p.conn = conn
	p.mu.Unlock()
	return nil
}

func (p *remoteProvider) handleNotification(resp response) {
	switch resp.Method {
	case notifySessionClosed:
		log.Debug("remote: bridge announced session close")
		p.mu.Lock()
		// nolint
		p.closeSessionLocked()
		p.mu.Unlock()
	case notifyNetworkChanged:
		result := networkResult{}
		if err := decodeResult(resp.Result, &result); err != nil {
			log.WithError(err).Warn("remote: malformed network_changed notification")
			return
		}
		p.mu.Lock()
		p.net = types.NetworkFromString(result.Network)
		p.mu.Unlock()
	default:
		log.Debugf("remote: ignoring unknown notification %s", resp.Method)
	}
}

func capabilitiesFromList(list []string) provider.Capabilities {
	caps := provider.Capabilities{}
	for _, name := range list {
		switch name {
		case "sign_message":
			caps.SignMessage = true
		case "sign_psbt":
			caps.SignPsbt = true
		case "taproot_key_spend":
			caps.TaprootKeySpend = true
		case "taproot_script_spend":
			caps.TaprootScriptSpend = true
		case "switch_network":
			caps.SwitchNetwork = true
		case "multiple_accounts":
			caps.MultipleAccounts = true
		}
	}
	return caps
}
