package kvstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"

	"github.com/satconnect/go-sdk/types"
)

const (
	txStoreDir = "txs"
)

type txStore struct {
	db      *badgerhold.Store
	lock    *sync.Mutex
	eventCh chan types.TransactionEvent
}

func NewTransactionStore(dir string, logger badger.Logger) (types.TransactionStore, error) {
	if dir != "" {
		dir = filepath.Join(dir, txStoreDir)
	}
	badgerDb, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open tx store: %s", err)
	}
	return &txStore{
		db:      badgerDb,
		lock:    &sync.Mutex{},
		eventCh: make(chan types.TransactionEvent, 100),
	}, nil
}

func (s *txStore) AddTransactions(_ context.Context, txs []types.Transaction) (int, error) {
	addedTxs := make([]types.Transaction, 0, len(txs))
	for _, tx := range txs {
		if err := s.db.Insert(tx.Txid, &tx); err != nil {
			if errors.Is(err, badgerhold.ErrKeyExists) {
				continue
			}
			return -1, err
		}
		addedTxs = append(addedTxs, tx)
	}

	if len(addedTxs) > 0 {
		go s.sendEvent(types.TransactionEvent{Type: types.TxsAdded, Txs: addedTxs})
	}

	return len(addedTxs), nil
}

func (s *txStore) ConfirmTransactions(
	ctx context.Context, txids []string, timestamp time.Time,
) (int, error) {
	txs, err := s.GetTransactions(ctx, txids)
	if err != nil {
		return -1, err
	}

	confirmedTxs := make([]types.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.CreatedAt.IsZero() {
			continue
		}
		tx.CreatedAt = timestamp

		if err := s.db.Update(tx.Txid, &tx); err != nil {
			return -1, err
		}
		confirmedTxs = append(confirmedTxs, tx)
	}

	if len(confirmedTxs) > 0 {
		go s.sendEvent(types.TransactionEvent{Type: types.TxsConfirmed, Txs: confirmedTxs})
	}

	return len(confirmedTxs), nil
}

func (s *txStore) RbfTransactions(
	ctx context.Context, rbfTxs map[string]string,
) (int, error) {
	txids := make([]string, 0, len(rbfTxs))
	for replacedTxid := range rbfTxs {
		txids = append(txids, replacedTxid)
	}

	txs, err := s.GetTransactions(ctx, txids)
	if err != nil {
		return -1, err
	}
	if len(txs) == 0 {
		return 0, nil
	}

	for _, tx := range txs {
		replacedTxid := tx.Txid
		tx.Txid = rbfTxs[replacedTxid]
		if err := s.db.Delete(replacedTxid, &types.Transaction{}); err != nil {
			return -1, err
		}
		if err := s.db.Insert(tx.Txid, &tx); err != nil {
			return -1, err
		}
	}

	go s.sendEvent(types.TransactionEvent{
		Type:         types.TxsReplaced,
		Txs:          txs,
		Replacements: rbfTxs,
	})

	return len(txs), nil
}

func (s *txStore) GetAllTransactions(_ context.Context) ([]types.Transaction, error) {
	var txs []types.Transaction
	if err := s.db.Find(&txs, nil); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *txStore) GetTransactions(
	_ context.Context, txids []string,
) ([]types.Transaction, error) {
	var txs []types.Transaction
	for _, txid := range txids {
		var tx types.Transaction
		if err := s.db.Get(txid, &tx); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				continue
			}

			return nil, err
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

func (s *txStore) GetEventChannel() <-chan types.TransactionEvent {
	return s.eventCh
}

func (s *txStore) Clean(_ context.Context) error {
	if err := s.db.Badger().DropAll(); err != nil {
		return fmt.Errorf("failed to clean the tx db: %s", err)
	}
	return nil
}

func (s *txStore) Close() {
	if err := s.db.Close(); err != nil {
		log.Debugf("error on closing db: %s", err)
	}
}

func (s *txStore) sendEvent(event types.TransactionEvent) {
	s.lock.Lock()
	defer s.lock.Unlock()

	select {
	case s.eventCh <- event:
		return
	default:
		time.Sleep(100 * time.Millisecond)
	}
}
