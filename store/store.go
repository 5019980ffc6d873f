package store

import (
	"context"
	"fmt"

	"github.com/satconnect/go-sdk/types"

	filestore "github.com/satconnect/go-sdk/store/file"
	inmemorystore "github.com/satconnect/go-sdk/store/inmemory"
	kvstore "github.com/satconnect/go-sdk/store/kv"
	sqlstore "github.com/satconnect/go-sdk/store/sql"
)

// Config drives the composition of the wallet storage. The config store and
// the app data store (transactions, utxos) can use different backends.
type Config struct {
	ConfigStoreType  string
	AppDataStoreType string
	BaseDir          string
}

type service struct {
	configStore types.ConfigStore
	txStore     types.TransactionStore
	utxoStore   types.UtxoStore
}

// NewStore creates a composite wallet store from the given config.
//
// Supported config store types: inmemory, file.
// Supported app data store types: inmemory, kv (badger), sql (sqlite).
// If AppDataStoreType is empty, no transaction/utxo store is created.
func NewStore(storeConfig Config) (types.Store, error) {
	var (
		configStore types.ConfigStore
		txStore     types.TransactionStore
		utxoStore   types.UtxoStore
		err         error

		dir = storeConfig.BaseDir
	)

	switch storeConfig.ConfigStoreType {
	case types.InMemoryStore:
		configStore, err = inmemorystore.NewConfigStore()
	case types.FileStore:
		configStore, err = filestore.NewConfigStore(dir)
	default:
		err = fmt.Errorf("unknown config store type '%s'", storeConfig.ConfigStoreType)
	}
	if err != nil {
		return nil, err
	}

	switch storeConfig.AppDataStoreType {
	case "":
	case types.InMemoryStore:
		txStore = inmemorystore.NewTransactionStore()
		utxoStore = inmemorystore.NewUtxoStore()
	case types.KVStore:
		txStore, err = kvstore.NewTransactionStore(dir, nil)
		if err == nil {
			utxoStore, err = kvstore.NewUtxoStore(dir, nil)
		}
	case types.SQLStore:
		var db sqlstore.DB
		db, err = sqlstore.OpenDb(dir)
		if err == nil {
			txStore = sqlstore.NewTransactionStore(db)
			utxoStore = sqlstore.NewUtxoStore(db)
		}
	default:
		err = fmt.Errorf("unknown app data store type '%s'", storeConfig.AppDataStoreType)
	}
	if err != nil {
		configStore.Close()
		return nil, err
	}

	return &service{
		configStore: configStore,
		txStore:     txStore,
		utxoStore:   utxoStore,
	}, nil
}

func (s *service) ConfigStore() types.ConfigStore {
	return s.configStore
}

func (s *service) TransactionStore() types.TransactionStore {
	return s.txStore
}

func (s *service) UtxoStore() types.UtxoStore {
	return s.utxoStore
}

func (s *service) Clean(ctx context.Context) {
	// nolint
	s.configStore.CleanData(ctx)
	if s.txStore != nil {
		// nolint
		s.txStore.Clean(ctx)
	}
	if s.utxoStore != nil {
		// nolint
		s.utxoStore.Clean(ctx)
	}
}

func (s *service) Close() {
	s.configStore.Close()
	if s.txStore != nil {
		s.txStore.Close()
	}
	if s.utxoStore != nil {
		s.utxoStore.Close()
	}
}
