package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	InMemoryStore = "inmemory"
	FileStore     = "file"
	KVStore       = "kv"
	SQLStore      = "sql"
)

// Config is the persisted connector configuration. It is written once at
// init time and restored by Load on every subsequent session.
type Config struct {
	ProviderType         string
	ProviderURL          string
	Network              Network
	ExplorerURL          string
	ExplorerPollInterval time.Duration
	WithTransactionFeed  bool
	Dust                 uint64
	FeeRateFloor         float64
}

type Outpoint struct {
	Txid string
	VOut uint32
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Txid, o.VOut)
}

type AddressType int

const (
	AddressP2WPKH AddressType = iota
	AddressP2TR
)

func (t AddressType) String() string {
	return map[AddressType]string{
		AddressP2WPKH: "p2wpkh",
		AddressP2TR:   "p2tr",
	}[t]
}

type Utxo struct {
	Outpoint
	Amount    uint64
	Script    string
	Address   string
	CreatedAt time.Time
	Spent     bool
	SpentBy   string
	Locked    bool
	Tx        string
}

func (u Utxo) String() string {
	// nolint
	b, _ := json.MarshalIndent(u, "", "  ")
	return string(b)
}

func (u Utxo) IsConfirmed() bool {
	return !u.CreatedAt.IsZero()
}

type UtxoEventType int

const (
	UtxosAdded UtxoEventType = iota
	UtxosConfirmed
	UtxosSpent
	UtxosLocked
	UtxosUnlocked
)

func (e UtxoEventType) String() string {
	return map[UtxoEventType]string{
		UtxosAdded:     "UTXOS_ADDED",
		UtxosConfirmed: "UTXOS_CONFIRMED",
		UtxosSpent:     "UTXOS_SPENT",
		UtxosLocked:    "UTXOS_LOCKED",
		UtxosUnlocked:  "UTXOS_UNLOCKED",
	}[e]
}

type UtxoEvent struct {
	Type  UtxoEventType
	Utxos []Utxo
}

type TxType string

const (
	TxSent     TxType = "SENT"
	TxReceived TxType = "RECEIVED"
	TxSelf     TxType = "SELF"
)

type Transaction struct {
	Txid      string
	Amount    uint64
	Fee       uint64
	Type      TxType
	CreatedAt time.Time
	Hex       string
}

func (t Transaction) String() string {
	// nolint
	buf, _ := json.MarshalIndent(t, "", "  ")
	return string(buf)
}

func (t Transaction) IsConfirmed() bool {
	return !t.CreatedAt.IsZero()
}

type TxEventType int

const (
	TxsAdded TxEventType = iota
	TxsConfirmed
	TxsReplaced
)

func (e TxEventType) String() string {
	return map[TxEventType]string{
		TxsAdded:     "TXS_ADDED",
		TxsConfirmed: "TXS_CONFIRMED",
		TxsReplaced:  "TXS_REPLACED",
	}[e]
}

type TransactionEvent struct {
	Type         TxEventType
	Txs          []Transaction
	Replacements map[string]string
}

// Receiver is a single payment destination of an outgoing transaction.
type Receiver struct {
	To     string
	Amount uint64
}

func (r Receiver) ToTxOut(params *chaincfg.Params) (*wire.TxOut, error) {
	addr, err := btcutil.DecodeAddress(r.To, params)
	if err != nil {
		return nil, fmt.Errorf("invalid receiver address '%s': %w", r.To, err)
	}

	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	return &wire.TxOut{
		Value:    int64(r.Amount),
		PkScript: pkScript,
	}, nil
}

// OnchainAddressEvent is pushed by the explorer tracker for every change
// affecting a subscribed address.
type OnchainAddressEvent struct {
	Error          error
	NewUtxos       []Utxo
	SpentUtxos     []Utxo
	ConfirmedUtxos []Utxo
	Replacements   map[string]string // replacedTxid -> replacementTxid
}

type ConnStatus int

const (
	Disconnected ConnStatus = iota
	Connecting
	Connected
)

func (s ConnStatus) String() string {
	return map[ConnStatus]string{
		Disconnected: "DISCONNECTED",
		Connecting:   "CONNECTING",
		Connected:    "CONNECTED",
	}[s]
}

type ConnEventType int

const (
	ConnEstablished ConnEventType = iota
	ConnClosed
	NetworkChanged
)

func (e ConnEventType) String() string {
	return map[ConnEventType]string{
		ConnEstablished: "CONN_ESTABLISHED",
		ConnClosed:      "CONN_CLOSED",
		NetworkChanged:  "NETWORK_CHANGED",
	}[e]
}

type ConnectionEvent struct {
	Type    ConnEventType
	Network Network
	Address string
}
