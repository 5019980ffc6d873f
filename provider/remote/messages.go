package remote

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Wire messages of the wallet bridge protocol. Requests and responses are
// correlated by id; the bridge may also push unsolicited notifications.

const (
	methodHandshake     = "handshake"
	methodDisconnect    = "disconnect"
	methodStatus        = "status"
	methodNetwork       = "get_network"
	methodSwitchNetwork = "switch_network"
	methodAddresses     = "get_addresses"
	methodNewAddress    = "new_address"
	methodPublicKey     = "get_public_key"
	methodSignMessage   = "sign_message"
	methodSignPsbt      = "sign_psbt"
)

const (
	notifySessionClosed  = "session_closed"
	notifyNetworkChanged = "network_changed"
)

type request struct {
	ID     uint64         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

type response struct {
	ID     uint64         `json:"id,omitempty"`
	Method string         `json:"method,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Error  *rpcError      `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("bridge error %d: %s", e.Code, e.Message)
}

type handshakeResult struct {
	Network      string   `mapstructure:"network"`
	Capabilities []string `mapstructure:"capabilities"`
}

type statusResult struct {
	Initialized bool `mapstructure:"initialized"`
	Unlocked    bool `mapstructure:"unlocked"`
}

type addressResult struct {
	Address string `mapstructure:"address"`
	Type    string `mapstructure:"type"`
}

type addressesResult struct {
	Addresses []addressResult `mapstructure:"addresses"`
}

type publicKeyResult struct {
	PublicKey string `mapstructure:"public_key"`
}

type signMessageResult struct {
	Signature string `mapstructure:"signature"`
}

type signPsbtResult struct {
	Psbt         string `mapstructure:"psbt"`
	SignedInputs int    `mapstructure:"signed_inputs"`
}

type networkResult struct {
	Network string `mapstructure:"network"`
}

// decodeResult maps a raw bridge payload onto a typed result struct.
func decodeResult(raw map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("malformed bridge response: %w", err)
	}
	return nil
}
