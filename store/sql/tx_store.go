package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/satconnect/go-sdk/types"
)

type txStore struct {
	db      *sql.DB
	lock    *sync.Mutex
	eventCh chan types.TransactionEvent
}

func NewTransactionStore(db *sql.DB) types.TransactionStore {
	return &txStore{
		db:      db,
		lock:    &sync.Mutex{},
		eventCh: make(chan types.TransactionEvent, 100),
	}
}

func (s *txStore) AddTransactions(ctx context.Context, txs []types.Transaction) (int, error) {
	addedTxs := make([]types.Transaction, 0, len(txs))
	txBody := func(sqlTx *sql.Tx) error {
		for _, tx := range txs {
			var createdAt int64
			if !tx.CreatedAt.IsZero() {
				createdAt = tx.CreatedAt.Unix()
			}
			if _, err := sqlTx.ExecContext(
				ctx,
				`INSERT INTO tx (txid, amount, fee, type, created_at, hex)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				tx.Txid, int64(tx.Amount), int64(tx.Fee), string(tx.Type),
				createdAt, sql.NullString{String: tx.Hex, Valid: len(tx.Hex) > 0},
			); err != nil {
				if strings.Contains(err.Error(), "UNIQUE constraint failed") {
					continue
				}
				return err
			}
			addedTxs = append(addedTxs, tx)
		}
		return nil
	}
	if err := execTx(ctx, s.db, txBody); err != nil {
		return -1, err
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
	txBody := func(sqlTx *sql.Tx) error {
		for _, tx := range txs {
			if !tx.CreatedAt.IsZero() {
				continue
			}
			tx.CreatedAt = timestamp
			if _, err := sqlTx.ExecContext(
				ctx, "UPDATE tx SET created_at = ? WHERE txid = ?",
				timestamp.Unix(), tx.Txid,
			); err != nil {
				return err
			}
			confirmedTxs = append(confirmedTxs, tx)
		}
		return nil
	}
	if err := execTx(ctx, s.db, txBody); err != nil {
		return -1, err
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

	txBody := func(sqlTx *sql.Tx) error {
		for _, tx := range txs {
			if _, err := sqlTx.ExecContext(
				ctx, "UPDATE tx SET txid = ? WHERE txid = ?",
				rbfTxs[tx.Txid], tx.Txid,
			); err != nil {
				return err
			}
		}
		return nil
	}
	if err := execTx(ctx, s.db, txBody); err != nil {
		return -1, err
	}

	go s.sendEvent(types.TransactionEvent{
		Type:         types.TxsReplaced,
		Txs:          txs,
		Replacements: rbfTxs,
	})

	return len(txs), nil
}

func (s *txStore) GetAllTransactions(ctx context.Context) ([]types.Transaction, error) {
	rows, err := s.db.QueryContext(
		ctx, "SELECT txid, amount, fee, type, created_at, hex FROM tx",
	)
	if err != nil {
		return nil, err
	}
	// nolint
	defer rows.Close()
	return readTxRows(rows)
}

func (s *txStore) GetTransactions(
	ctx context.Context, txids []string,
) ([]types.Transaction, error) {
	if len(txids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(txids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(txids))
	for _, txid := range txids {
		args = append(args, txid)
	}

	rows, err := s.db.QueryContext(
		ctx,
		"SELECT txid, amount, fee, type, created_at, hex FROM tx WHERE txid IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return nil, err
	}
	// nolint
	defer rows.Close()
	return readTxRows(rows)
}

func (s *txStore) GetEventChannel() <-chan types.TransactionEvent {
	return s.eventCh
}

func (s *txStore) Clean(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM tx"); err != nil {
		return err
	}
	// nolint:all
	s.db.ExecContext(ctx, "VACUUM")
	return nil
}

func (s *txStore) Close() {
	// nolint:all
	s.db.Close()
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

func readTxRows(rows *sql.Rows) ([]types.Transaction, error) {
	txs := make([]types.Transaction, 0)
	for rows.Next() {
		var (
			txid, txType  string
			amount, fee   int64
			createdAtUnix int64
			txHex         sql.NullString
		)
		if err := rows.Scan(
			&txid, &amount, &fee, &txType, &createdAtUnix, &txHex,
		); err != nil {
			return nil, err
		}
		var createdAt time.Time
		if createdAtUnix != 0 {
			createdAt = time.Unix(createdAtUnix, 0)
		}
		txs = append(txs, types.Transaction{
			Txid:      txid,
			Amount:    uint64(amount),
			Fee:       uint64(fee),
			Type:      types.TxType(txType),
			CreatedAt: createdAt,
			Hex:       txHex.String,
		})
	}
	return txs, rows.Err()
}
