package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/satconnect/go-sdk/types"
)

type utxoStore struct {
	db      *sql.DB
	lock    *sync.Mutex
	eventCh chan types.UtxoEvent
}

func NewUtxoStore(db *sql.DB) types.UtxoStore {
	return &utxoStore{
		db:      db,
		lock:    &sync.Mutex{},
		eventCh: make(chan types.UtxoEvent, 100),
	}
}

func (s *utxoStore) AddUtxos(ctx context.Context, utxos []types.Utxo) (int, error) {
	addedUtxos := make([]types.Utxo, 0, len(utxos))
	txBody := func(sqlTx *sql.Tx) error {
		for _, utxo := range utxos {
			var createdAt int64
			if !utxo.CreatedAt.IsZero() {
				createdAt = utxo.CreatedAt.Unix()
			}
			if _, err := sqlTx.ExecContext(
				ctx,
				`INSERT INTO utxo
				 (txid, vout, amount, script, address, created_at, spent, spent_by, locked, tx)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				utxo.Txid, utxo.VOut, int64(utxo.Amount), utxo.Script, utxo.Address,
				createdAt, utxo.Spent,
				sql.NullString{String: utxo.SpentBy, Valid: len(utxo.SpentBy) > 0},
				utxo.Locked,
				sql.NullString{String: utxo.Tx, Valid: len(utxo.Tx) > 0},
			); err != nil {
				if strings.Contains(err.Error(), "UNIQUE constraint failed") {
					continue
				}
				return err
			}
			addedUtxos = append(addedUtxos, utxo)
		}
		return nil
	}
	if err := execTx(ctx, s.db, txBody); err != nil {
		return -1, err
	}

	if len(addedUtxos) > 0 {
		go s.sendEvent(types.UtxoEvent{Type: types.UtxosAdded, Utxos: addedUtxos})
	}

	return len(addedUtxos), nil
}

func (s *utxoStore) ConfirmUtxos(
	ctx context.Context, confirmedUtxoMap map[types.Outpoint]int64,
) (int, error) {
	outpoints := make([]types.Outpoint, 0, len(confirmedUtxoMap))
	for outpoint := range confirmedUtxoMap {
		outpoints = append(outpoints, outpoint)
	}
	utxos, err := s.GetUtxos(ctx, outpoints)
	if err != nil {
		return -1, err
	}

	confirmedUtxos := make([]types.Utxo, 0, len(utxos))
	txBody := func(sqlTx *sql.Tx) error {
		for _, utxo := range utxos {
			if utxo.IsConfirmed() {
				continue
			}
			utxo.CreatedAt = time.Unix(confirmedUtxoMap[utxo.Outpoint], 0)
			if _, err := sqlTx.ExecContext(
				ctx, "UPDATE utxo SET created_at = ? WHERE txid = ? AND vout = ?",
				utxo.CreatedAt.Unix(), utxo.Txid, utxo.VOut,
			); err != nil {
				return err
			}
			confirmedUtxos = append(confirmedUtxos, utxo)
		}
		return nil
	}
	if err := execTx(ctx, s.db, txBody); err != nil {
		return -1, err
	}

	if len(confirmedUtxos) > 0 {
		go s.sendEvent(types.UtxoEvent{Type: types.UtxosConfirmed, Utxos: confirmedUtxos})
	}

	return len(confirmedUtxos), nil
}

func (s *utxoStore) SpendUtxos(
	ctx context.Context, spentUtxoMap map[types.Outpoint]string,
) (int, error) {
	outpoints := make([]types.Outpoint, 0, len(spentUtxoMap))
	for outpoint := range spentUtxoMap {
		outpoints = append(outpoints, outpoint)
	}
	utxos, err := s.GetUtxos(ctx, outpoints)
	if err != nil {
		return -1, err
	}

	spentUtxos := make([]types.Utxo, 0, len(utxos))
	txBody := func(sqlTx *sql.Tx) error {
		for _, utxo := range utxos {
			if utxo.Spent {
				continue
			}
			utxo.Spent = true
			utxo.SpentBy = spentUtxoMap[utxo.Outpoint]
			if _, err := sqlTx.ExecContext(
				ctx, "UPDATE utxo SET spent = true, spent_by = ? WHERE txid = ? AND vout = ?",
				utxo.SpentBy, utxo.Txid, utxo.VOut,
			); err != nil {
				return err
			}
			spentUtxos = append(spentUtxos, utxo)
		}
		return nil
	}
	if err := execTx(ctx, s.db, txBody); err != nil {
		return -1, err
	}

	if len(spentUtxos) > 0 {
		go s.sendEvent(types.UtxoEvent{Type: types.UtxosSpent, Utxos: spentUtxos})
	}

	return len(spentUtxos), nil
}

func (s *utxoStore) LockUtxos(
	ctx context.Context, keys []types.Outpoint, lock bool,
) (int, error) {
	utxos, err := s.GetUtxos(ctx, keys)
	if err != nil {
		return -1, err
	}

	lockedUtxos := make([]types.Utxo, 0, len(utxos))
	txBody := func(sqlTx *sql.Tx) error {
		for _, utxo := range utxos {
			if utxo.Locked == lock {
				continue
			}
			utxo.Locked = lock
			if _, err := sqlTx.ExecContext(
				ctx, "UPDATE utxo SET locked = ? WHERE txid = ? AND vout = ?",
				lock, utxo.Txid, utxo.VOut,
			); err != nil {
				return err
			}
			lockedUtxos = append(lockedUtxos, utxo)
		}
		return nil
	}
	if err := execTx(ctx, s.db, txBody); err != nil {
		return -1, err
	}

	if len(lockedUtxos) > 0 {
		eventType := types.UtxosLocked
		if !lock {
			eventType = types.UtxosUnlocked
		}
		go s.sendEvent(types.UtxoEvent{Type: eventType, Utxos: lockedUtxos})
	}

	return len(lockedUtxos), nil
}

func (s *utxoStore) GetAllUtxos(
	ctx context.Context,
) (spendable, spent []types.Utxo, err error) {
	rows, err := s.db.QueryContext(ctx, selectUtxoColumns+" FROM utxo")
	if err != nil {
		return nil, nil, err
	}
	// nolint
	defer rows.Close()

	allUtxos, err := readUtxoRows(rows)
	if err != nil {
		return nil, nil, err
	}

	for _, utxo := range allUtxos {
		if utxo.Spent {
			spent = append(spent, utxo)
		} else {
			spendable = append(spendable, utxo)
		}
	}
	return
}

func (s *utxoStore) GetUtxos(
	ctx context.Context, keys []types.Outpoint,
) ([]types.Utxo, error) {
	utxos := make([]types.Utxo, 0, len(keys))
	for _, key := range keys {
		row := s.db.QueryRowContext(
			ctx, selectUtxoColumns+" FROM utxo WHERE txid = ? AND vout = ?",
			key.Txid, key.VOut,
		)
		utxo, err := scanUtxoRow(row)
		if err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, err
		}
		utxos = append(utxos, utxo)
	}
	return utxos, nil
}

func (s *utxoStore) GetEventChannel() <-chan types.UtxoEvent {
	return s.eventCh
}

func (s *utxoStore) Clean(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM utxo"); err != nil {
		return err
	}
	// nolint:all
	s.db.ExecContext(ctx, "VACUUM")
	return nil
}

func (s *utxoStore) Close() {
	// nolint:all
	s.db.Close()
}

func (s *utxoStore) sendEvent(event types.UtxoEvent) {
	s.lock.Lock()
	defer s.lock.Unlock()

	select {
	case s.eventCh <- event:
		return
	default:
		time.Sleep(100 * time.Millisecond)
	}
}

const selectUtxoColumns = `SELECT
	txid, vout, amount, script, address, created_at, spent, spent_by, locked, tx`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUtxoRow(row rowScanner) (types.Utxo, error) {
	var (
		txid, script, address string
		vout                  uint32
		amount, createdAtUnix int64
		spent, locked         bool
		spentBy, rawTx        sql.NullString
	)
	if err := row.Scan(
		&txid, &vout, &amount, &script, &address,
		&createdAtUnix, &spent, &spentBy, &locked, &rawTx,
	); err != nil {
		return types.Utxo{}, err
	}
	var createdAt time.Time
	if createdAtUnix != 0 {
		createdAt = time.Unix(createdAtUnix, 0)
	}
	return types.Utxo{
		Outpoint: types.Outpoint{
			Txid: txid,
			VOut: vout,
		},
		Amount:    uint64(amount),
		Script:    script,
		Address:   address,
		CreatedAt: createdAt,
		Spent:     spent,
		SpentBy:   spentBy.String,
		Locked:    locked,
		Tx:        rawTx.String,
	}, nil
}

func readUtxoRows(rows *sql.Rows) ([]types.Utxo, error) {
	utxos := make([]types.Utxo, 0)
	for rows.Next() {
		utxo, err := scanUtxoRow(rows)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, utxo)
	}
	return utxos, rows.Err()
}
