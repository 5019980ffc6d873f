// Package explorer provides an esplora/mempool.space chain backend with
// support for real-time address tracking over multiple WebSocket connections.
//
// # Architecture
//
//   - Multiple concurrent WebSocket connections, one tracked address each
//   - Automatic fallback to polling if WebSocket connections fail
//   - Connection pooling to handle mempool.space API rate limits
//
// # Usage
//
// Basic usage with default settings:
//
//	svc, err := explorer.NewService("", types.Bitcoin, explorer.WithTracker(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Start()
//	defer svc.Stop()
//
//	if err := svc.SubscribeForAddresses([]string{"bc1q...", "bc1p..."}); err != nil {
//	    log.Fatal(err)
//	}
//
//	for event := range svc.GetAddressesEvents() {
//	    fmt.Printf("New UTXOs: %d, Spent: %d\n", len(event.NewUtxos), len(event.SpentUtxos))
//	}
//
// All public methods are safe for concurrent use.
package explorer

import (
	"time"

	"github.com/satconnect/go-sdk/types"
)

// Explorer provides methods to interact with blockchain explorers
// (e.g., mempool.space, esplora). It supports both HTTP REST API calls and
// WebSocket connections for real-time address tracking.
type Explorer interface {
	// Start must be used when using the explorer with tracking enabled.
	Start()

	// Stop tears down all tracking connections and listeners.
	Stop()

	// GetTxHex retrieves the raw transaction hex for a given transaction ID.
	GetTxHex(txid string) (string, error)

	// Broadcast broadcasts one or more raw transactions to the network.
	// Multiple transactions are submitted as a package.
	// Returns the transaction ID of the first transaction on success.
	Broadcast(txs ...string) (string, error)

	// GetTxs retrieves all transactions associated with a given address.
	GetTxs(addr string) ([]Tx, error)

	// GetTxOutspends returns the spent status of all outputs for a given transaction.
	GetTxOutspends(txid string) ([]SpentStatus, error)

	// GetUtxos retrieves all unspent transaction outputs for a given address.
	GetUtxos(addr string) ([]Utxo, error)

	// GetTxBlockTime returns whether a transaction is confirmed and its block time.
	GetTxBlockTime(txid string) (confirmed bool, blocktime int64, err error)

	// BaseUrl returns the base URL of the explorer service.
	BaseUrl() string

	// GetNetwork returns the network the explorer is connected to.
	GetNetwork() types.Network

	// GetFeeRate retrieves the current recommended fee rate in sat/vB.
	GetFeeRate() (float64, error)

	// GetConnectionCount returns the number of active WebSocket connections.
	GetConnectionCount() int

	// GetSubscribedAddresses returns a list of all currently subscribed addresses.
	GetSubscribedAddresses() []string

	// IsAddressSubscribed checks if a specific address is currently subscribed.
	IsAddressSubscribed(address string) bool

	// GetAddressesEvents returns a channel that receives onchain address events
	// (new UTXOs, spent UTXOs, confirmed UTXOs) for all subscribed addresses.
	GetAddressesEvents() <-chan types.OnchainAddressEvent

	// SubscribeForAddresses subscribes to address updates. When WebSocket
	// connections are available each address gets its own connection,
	// otherwise updates are detected by polling.
	SubscribeForAddresses(addresses []string) error

	// UnsubscribeForAddresses stops tracking the given addresses.
	UnsubscribeForAddresses(addresses []string) error
}

// Output is a transaction output as reported by the explorer.
type Output struct {
	Script  string
	Address string
	Amount  uint64
}

// Input is a transaction input with its resolved previous output.
type Input struct {
	Txid   string
	Vout   uint32
	Output Output
}

// ConfirmedStatus reports the confirmation state of a transaction or utxo.
type ConfirmedStatus struct {
	Confirmed bool
	BlockTime int64
}

// Tx is a transaction as reported by the explorer.
type Tx struct {
	Txid   string
	Vin    []Input
	Vout   []Output
	Status ConfirmedStatus
}

// SpentStatus reports whether a transaction output has been spent and by whom.
type SpentStatus struct {
	Spent   bool
	SpentBy string
}

// Utxo is an unspent output as reported by the explorer.
type Utxo struct {
	Txid   string
	Vout   uint32
	Amount uint64
	Script string
	Status ConfirmedStatus
}

// ToTypeUtxo converts an explorer utxo into the wallet representation,
// attaching the address it belongs to.
func (u Utxo) ToTypeUtxo(addr string) types.Utxo {
	var createdAt time.Time
	if u.Status.Confirmed {
		createdAt = time.Unix(u.Status.BlockTime, 0)
	}
	return types.Utxo{
		Outpoint: types.Outpoint{
			Txid: u.Txid,
			VOut: u.Vout,
		},
		Amount:    u.Amount,
		Script:    u.Script,
		Address:   addr,
		CreatedAt: createdAt,
	}
}
