package inmemorystore

import (
	"context"
	"sync"
	"time"

	"github.com/satconnect/go-sdk/types"
)

type utxoStore struct {
	lock    *sync.RWMutex
	utxos   map[string]types.Utxo
	eventCh chan types.UtxoEvent
}

func NewUtxoStore() types.UtxoStore {
	return &utxoStore{
		lock:    &sync.RWMutex{},
		utxos:   make(map[string]types.Utxo),
		eventCh: make(chan types.UtxoEvent, 100),
	}
}

func (s *utxoStore) AddUtxos(_ context.Context, utxos []types.Utxo) (int, error) {
	s.lock.Lock()

	addedUtxos := make([]types.Utxo, 0, len(utxos))
	for _, utxo := range utxos {
		if _, ok := s.utxos[utxo.Outpoint.String()]; ok {
			continue
		}
		s.utxos[utxo.Outpoint.String()] = utxo
		addedUtxos = append(addedUtxos, utxo)
	}
	s.lock.Unlock()

	if len(addedUtxos) > 0 {
		go s.sendEvent(types.UtxoEvent{Type: types.UtxosAdded, Utxos: addedUtxos})
	}

	return len(addedUtxos), nil
}

func (s *utxoStore) ConfirmUtxos(
	_ context.Context, confirmedUtxoMap map[types.Outpoint]int64,
) (int, error) {
	s.lock.Lock()

	confirmedUtxos := make([]types.Utxo, 0, len(confirmedUtxoMap))
	for outpoint, blocktime := range confirmedUtxoMap {
		utxo, ok := s.utxos[outpoint.String()]
		if !ok || utxo.IsConfirmed() {
			continue
		}
		utxo.CreatedAt = time.Unix(blocktime, 0)
		s.utxos[outpoint.String()] = utxo
		confirmedUtxos = append(confirmedUtxos, utxo)
	}
	s.lock.Unlock()

	if len(confirmedUtxos) > 0 {
		go s.sendEvent(types.UtxoEvent{Type: types.UtxosConfirmed, Utxos: confirmedUtxos})
	}

	return len(confirmedUtxos), nil
}

func (s *utxoStore) SpendUtxos(
	_ context.Context, spentUtxoMap map[types.Outpoint]string,
) (int, error) {
	s.lock.Lock()

	spentUtxos := make([]types.Utxo, 0, len(spentUtxoMap))
	for outpoint, spentBy := range spentUtxoMap {
		utxo, ok := s.utxos[outpoint.String()]
		if !ok || utxo.Spent {
			continue
		}
		utxo.Spent = true
		utxo.SpentBy = spentBy
		s.utxos[outpoint.String()] = utxo
		spentUtxos = append(spentUtxos, utxo)
	}
	s.lock.Unlock()

	if len(spentUtxos) > 0 {
		go s.sendEvent(types.UtxoEvent{Type: types.UtxosSpent, Utxos: spentUtxos})
	}

	return len(spentUtxos), nil
}

func (s *utxoStore) LockUtxos(
	_ context.Context, keys []types.Outpoint, lock bool,
) (int, error) {
	s.lock.Lock()

	lockedUtxos := make([]types.Utxo, 0, len(keys))
	for _, key := range keys {
		utxo, ok := s.utxos[key.String()]
		if !ok || utxo.Locked == lock {
			continue
		}
		utxo.Locked = lock
		s.utxos[key.String()] = utxo
		lockedUtxos = append(lockedUtxos, utxo)
	}
	s.lock.Unlock()

	if len(lockedUtxos) > 0 {
		eventType := types.UtxosLocked
		if !lock {
			eventType = types.UtxosUnlocked
		}
		go s.sendEvent(types.UtxoEvent{Type: eventType, Utxos: lockedUtxos})
	}

	return len(lockedUtxos), nil
}

func (s *utxoStore) GetAllUtxos(_ context.Context) (spendable, spent []types.Utxo, err error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	for _, utxo := range s.utxos {
		if utxo.Spent {
			spent = append(spent, utxo)
		} else {
			spendable = append(spendable, utxo)
		}
	}
	return
}

func (s *utxoStore) GetUtxos(_ context.Context, keys []types.Outpoint) ([]types.Utxo, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	utxos := make([]types.Utxo, 0, len(keys))
	for _, key := range keys {
		if utxo, ok := s.utxos[key.String()]; ok {
			utxos = append(utxos, utxo)
		}
	}
	return utxos, nil
}

func (s *utxoStore) Clean(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.utxos = make(map[string]types.Utxo)
	return nil
}

func (s *utxoStore) GetEventChannel() <-chan types.UtxoEvent {
	return s.eventCh
}

func (s *utxoStore) Close() {}

func (s *utxoStore) sendEvent(event types.UtxoEvent) {
	select {
	case s.eventCh <- event:
		return
	default:
		time.Sleep(100 * time.Millisecond)
	}
}
