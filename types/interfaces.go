package types

import (
	"context"
	"time"
)

type Store interface {
	ConfigStore() ConfigStore
	TransactionStore() TransactionStore
	UtxoStore() UtxoStore
	Clean(ctx context.Context)
	Close()
}

type ConfigStore interface {
	GetType() string
	GetDatadir() string
	AddData(ctx context.Context, data Config) error
	GetData(ctx context.Context) (*Config, error)
	CleanData(ctx context.Context) error
	Close()
}

type TransactionStore interface {
	AddTransactions(ctx context.Context, txs []Transaction) (int, error)
	ConfirmTransactions(ctx context.Context, txids []string, timestamp time.Time) (int, error)
	RbfTransactions(ctx context.Context, rbfTxs map[string]string) (int, error)
	GetAllTransactions(ctx context.Context) ([]Transaction, error)
	GetTransactions(ctx context.Context, txids []string) ([]Transaction, error)
	Clean(ctx context.Context) error
	GetEventChannel() <-chan TransactionEvent
	Close()
}

type UtxoStore interface {
	AddUtxos(ctx context.Context, utxos []Utxo) (int, error)
	ConfirmUtxos(ctx context.Context, confirmedUtxos map[Outpoint]int64) (int, error)
	SpendUtxos(ctx context.Context, spentUtxos map[Outpoint]string) (int, error)
	LockUtxos(ctx context.Context, keys []Outpoint, lock bool) (int, error)
	GetAllUtxos(ctx context.Context) (spendable, spent []Utxo, err error)
	GetUtxos(ctx context.Context, keys []Outpoint) ([]Utxo, error)
	Clean(ctx context.Context) error
	GetEventChannel() <-chan UtxoEvent
	Close()
}
