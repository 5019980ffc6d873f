package satconnect

import (
	"context"
	"time"

	"github.com/satconnect/go-sdk/types"
)

var Version string

// WalletConnector is the single surface applications use to talk to a
// wallet, whatever backend actually holds the keys.
type WalletConnector interface {
	GetVersion() string
	GetConfigData(ctx context.Context) (*types.Config, error)
	Init(ctx context.Context, args InitArgs) error
	IsLocked(ctx context.Context) bool
	Unlock(ctx context.Context, password string) error
	Lock(ctx context.Context) error
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	GetConnectionEventChannel(ctx context.Context) <-chan types.ConnectionEvent
	Receive(ctx context.Context) (string, error)
	NewAddress(ctx context.Context) (string, error)
	GetAddresses(ctx context.Context) ([]string, error)
	GetPublicKey(ctx context.Context) (string, error)
	Balance(ctx context.Context) (*Balance, error)
	ListUtxos(ctx context.Context) (spendable, spent []types.Utxo, err error)
	SendBitcoin(ctx context.Context, receivers []types.Receiver, opts ...Option) (string, error)
	SignMessage(ctx context.Context, message string) (string, error)
	VerifyMessage(ctx context.Context, message, signature string) (bool, error)
	SignPsbt(ctx context.Context, tx string, opts ...Option) (string, error)
	PushPsbt(ctx context.Context, tx string) (string, error)
	SignAndPushPsbt(ctx context.Context, tx string, opts ...Option) (string, error)
	SwitchNetwork(ctx context.Context, network types.Network) error
	GetTransactionHistory(ctx context.Context) ([]types.Transaction, error)
	GetTransactionEventChannel(ctx context.Context) <-chan types.TransactionEvent
	GetUtxoEventChannel(ctx context.Context) <-chan types.UtxoEvent
	Dump(ctx context.Context) (seed string, err error)
	Reset(ctx context.Context)
	Stop()
}

// InitArgs carries everything Init needs to provision a connector from
// scratch.
type InitArgs struct {
	ProviderType string
	ProviderURL  string
	Network      string
	ExplorerURL  string

	// Password protects the key material of providers that hold keys
	// locally. Ignored by remote providers.
	Password string
	// PrivateKey restores an existing key (hex). Empty generates a fresh
	// one.
	PrivateKey string

	WithTransactionFeed  bool
	ExplorerPollInterval time.Duration
	Dust                 uint64
	FeeRateFloor         float64
}

type Balance struct {
	Confirmed   uint64
	Unconfirmed uint64
	Locked      uint64
	Total       uint64
}
