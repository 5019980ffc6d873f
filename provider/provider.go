// Package provider defines the capability interface every wallet backend is
// normalized behind, so the connector can drive an in-process key, a remote
// signing daemon or any future backend through one surface.
package provider

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/satconnect/go-sdk/types"
)

const (
	SingleKeyProvider = "singlekey"
	RemoteProvider    = "remote"
)

var (
	ErrProviderLocked          = errors.New("provider is locked")
	ErrProviderNotConnected    = errors.New("provider is not connected")
	ErrCapabilityNotSupported  = errors.New("operation not supported by the active provider")
	ErrSessionClosed           = errors.New("provider session closed")
	ErrNetworkMismatch         = errors.New("provider is on a different network")
	ErrProviderNotInitialized  = errors.New("provider is not initialized")
	ErrProviderAlreadyUnlocked = errors.New("provider is already unlocked")
)

// Capabilities declares what a wallet backend can do. The connector rejects
// operations the active provider does not declare.
type Capabilities struct {
	SignMessage        bool
	SignPsbt           bool
	TaprootKeySpend    bool
	TaprootScriptSpend bool
	SwitchNetwork      bool
	MultipleAccounts   bool
}

// Status is the provider's current connection and key state.
type Status struct {
	Initialized bool
	Unlocked    bool
	Connected   bool
}

type Address struct {
	Address string
	Type    types.AddressType
}

// SignPsbtOptions restricts which inputs a provider signs.
type SignPsbtOptions struct {
	// InputsToSign restricts signing to the given input indexes.
	// Empty means every input the provider can sign.
	InputsToSign []int
}

// Provider is the one surface heterogeneous wallet backends are normalized
// behind.
type Provider interface {
	Type() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Status(ctx context.Context) (Status, error)
	Capabilities() Capabilities
	Network(ctx context.Context) (types.Network, error)
	SwitchNetwork(ctx context.Context, net types.Network) error
	Addresses(ctx context.Context) ([]Address, error)
	NewAddress(ctx context.Context, change bool) (Address, error)
	PublicKey(ctx context.Context) (*btcec.PublicKey, error)
	SignMessage(ctx context.Context, message []byte) (signature string, err error)
	SignPsbt(ctx context.Context, packet *psbt.Packet, opts SignPsbtOptions) (int, error)
	Close()
}

// Locker is implemented by providers guarding key material behind a
// password. Callers discover it by type assertion.
type Locker interface {
	Create(ctx context.Context, password, privateKey string) (string, error)
	Unlock(ctx context.Context, password string) (alreadyUnlocked bool, err error)
	Lock(ctx context.Context) error
	IsLocked() bool
	Dump(ctx context.Context) (string, error)
}
