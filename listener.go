package satconnect

import (
	"context"
	"time"

	"github.com/satconnect/go-sdk/types"
	log "github.com/sirupsen/logrus"
)

// listenForOnchainTxs subscribes the wallet addresses on the explorer and
// feeds every chain event into the local stores until ctx is cancelled.
func (c *connector) listenForOnchainTxs(ctx context.Context) {
	addrs, err := c.provider.Addresses(ctx)
	if err != nil {
		log.WithError(err).Error("failed to fetch addresses to track")
		return
	}

	addresses := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		addresses = append(addresses, addr.Address)
	}

	if err := c.explorer.SubscribeForAddresses(addresses); err != nil {
		log.WithError(err).Error("failed to subscribe for address events")
		return
	}

	eventCh := c.explorer.GetAddressesEvents()
	for {
		select {
		case <-ctx.Done():
			// nolint
			c.explorer.UnsubscribeForAddresses(addresses)
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if event.Error != nil {
				log.WithError(event.Error).Warn("address tracking error")
				continue
			}
			c.handleAddressEvent(ctx, event)
		}
	}
}

func (c *connector) handleAddressEvent(ctx context.Context, event types.OnchainAddressEvent) {
	txsToAdd := make([]types.Transaction, 0, len(event.NewUtxos))
	utxosToAdd := make([]types.Utxo, 0, len(event.NewUtxos))
	txsToConfirm := make([]string, 0, len(event.ConfirmedUtxos))
	utxosToConfirm := make(map[types.Outpoint]int64)
	utxosToSpend := make(map[types.Outpoint]string)

	for _, utxo := range event.NewUtxos {
		txHex, err := c.explorer.GetTxHex(utxo.Txid)
		if err != nil {
			log.WithError(err).WithField("txid", utxo.Txid).
				Warn("failed to fetch tx hex for new utxo")
		}
		utxo.Tx = txHex
		utxosToAdd = append(utxosToAdd, utxo)
		txsToAdd = append(txsToAdd, types.Transaction{
			Txid:      utxo.Txid,
			Amount:    utxo.Amount,
			Type:      types.TxReceived,
			CreatedAt: utxo.CreatedAt,
			Hex:       txHex,
		})
	}

	for _, utxo := range event.ConfirmedUtxos {
		utxosToConfirm[utxo.Outpoint] = utxo.CreatedAt.Unix()
		txsToConfirm = append(txsToConfirm, utxo.Txid)
	}

	for _, utxo := range event.SpentUtxos {
		utxosToSpend[utxo.Outpoint] = utxo.SpentBy
	}

	c.dbMu.Lock()
	defer c.dbMu.Unlock()

	txStore := c.store.TransactionStore()
	utxoStore := c.store.UtxoStore()

	if len(event.Replacements) > 0 {
		if _, err := txStore.RbfTransactions(ctx, event.Replacements); err != nil {
			log.WithError(err).Warn("failed to replace rbf'd transactions")
		}
	}

	if len(utxosToAdd) > 0 {
		if _, err := utxoStore.AddUtxos(ctx, utxosToAdd); err != nil {
			log.WithError(err).Warn("failed to add new utxos")
		}
	}
	if len(txsToAdd) > 0 {
		if _, err := txStore.AddTransactions(ctx, txsToAdd); err != nil {
			log.WithError(err).Warn("failed to add new transactions")
		}
	}
	if len(utxosToConfirm) > 0 {
		if _, err := utxoStore.ConfirmUtxos(ctx, utxosToConfirm); err != nil {
			log.WithError(err).Warn("failed to confirm utxos")
		}
	}
	if len(txsToConfirm) > 0 {
		now := time.Now()
		if _, err := txStore.ConfirmTransactions(ctx, txsToConfirm, now); err != nil {
			log.WithError(err).Warn("failed to confirm transactions")
		}
	}
	if len(utxosToSpend) > 0 {
		if _, err := utxoStore.SpendUtxos(ctx, utxosToSpend); err != nil {
			log.WithError(err).Warn("failed to mark utxos as spent")
		}
	}
}
