package inmemorystore

import (
	"context"
	"sync"
	"time"

	"github.com/satconnect/go-sdk/types"
)

type txStore struct {
	lock    *sync.RWMutex
	txs     map[string]types.Transaction
	eventCh chan types.TransactionEvent
}

func NewTransactionStore() types.TransactionStore {
	return &txStore{
		lock:    &sync.RWMutex{},
		txs:     make(map[string]types.Transaction),
		eventCh: make(chan types.TransactionEvent, 100),
	}
}

func (s *txStore) AddTransactions(_ context.Context, txs []types.Transaction) (int, error) {
	s.lock.Lock()

	addedTxs := make([]types.Transaction, 0, len(txs))
	for _, tx := range txs {
		if _, ok := s.txs[tx.Txid]; ok {
			continue
		}
		s.txs[tx.Txid] = tx
		addedTxs = append(addedTxs, tx)
	}
	s.lock.Unlock()

	if len(addedTxs) > 0 {
		go s.sendEvent(types.TransactionEvent{Type: types.TxsAdded, Txs: addedTxs})
	}

	return len(addedTxs), nil
}

func (s *txStore) ConfirmTransactions(
	_ context.Context, txids []string, timestamp time.Time,
) (int, error) {
	s.lock.Lock()

	confirmedTxs := make([]types.Transaction, 0, len(txids))
	for _, txid := range txids {
		tx, ok := s.txs[txid]
		if !ok || !tx.CreatedAt.IsZero() {
			continue
		}
		tx.CreatedAt = timestamp
		s.txs[txid] = tx
		confirmedTxs = append(confirmedTxs, tx)
	}
	s.lock.Unlock()

	if len(confirmedTxs) > 0 {
		go s.sendEvent(types.TransactionEvent{Type: types.TxsConfirmed, Txs: confirmedTxs})
	}

	return len(confirmedTxs), nil
}

func (s *txStore) RbfTransactions(
	_ context.Context, rbfTxs map[string]string,
) (int, error) {
	s.lock.Lock()

	replacedTxs := make([]types.Transaction, 0, len(rbfTxs))
	for replacedTxid, replacementTxid := range rbfTxs {
		tx, ok := s.txs[replacedTxid]
		if !ok {
			continue
		}
		delete(s.txs, replacedTxid)
		replacedTxs = append(replacedTxs, tx)

		tx.Txid = replacementTxid
		s.txs[replacementTxid] = tx
	}
	s.lock.Unlock()

	if len(replacedTxs) > 0 {
		go s.sendEvent(types.TransactionEvent{
			Type:         types.TxsReplaced,
			Txs:          replacedTxs,
			Replacements: rbfTxs,
		})
	}

	return len(replacedTxs), nil
}

func (s *txStore) GetAllTransactions(_ context.Context) ([]types.Transaction, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	txs := make([]types.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		txs = append(txs, tx)
	}
	return txs, nil
}

func (s *txStore) GetTransactions(_ context.Context, txids []string) ([]types.Transaction, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	txs := make([]types.Transaction, 0, len(txids))
	for _, txid := range txids {
		if tx, ok := s.txs[txid]; ok {
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

func (s *txStore) Clean(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.txs = make(map[string]types.Transaction)
	return nil
}

func (s *txStore) GetEventChannel() <-chan types.TransactionEvent {
	return s.eventCh
}

func (s *txStore) Close() {}

func (s *txStore) sendEvent(event types.TransactionEvent) {
	select {
	case s.eventCh <- event:
		return
	default:
		time.Sleep(100 * time.Millisecond)
	}
}
