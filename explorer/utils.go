package explorer

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/gorilla/websocket"
)

// parseBitcoinTx accepts either a raw transaction hex or a base64 PSBT and
// returns the finalized transaction hex together with its txid.
func parseBitcoinTx(txStr string) (string, string, error) {
	var tx wire.MsgTx

	if err := tx.Deserialize(hex.NewDecoder(strings.NewReader(txStr))); err != nil {
		ptx, err := psbt.NewFromRawBytes(strings.NewReader(txStr), true)
		if err != nil {
			return "", "", err
		}

		txFromPartial, err := psbt.Extract(ptx)
		if err != nil {
			return "", "", err
		}

		tx = *txFromPartial
	}

	var txBuf bytes.Buffer

	if err := tx.Serialize(&txBuf); err != nil {
		return "", "", err
	}

	return hex.EncodeToString(txBuf.Bytes()), tx.TxHash().String(), nil
}

func deriveWsURL(baseUrl string) (string, error) {
	parsedUrl, err := url.Parse(baseUrl)
	if err != nil {
		return "", err
	}

	scheme := "ws"
	if parsedUrl.Scheme == "https" {
		scheme = "wss"
	}
	parsedUrl.Scheme = scheme
	wsUrl := strings.TrimRight(parsedUrl.String(), "/")

	return fmt.Sprintf("%s/v1/ws", wsUrl), nil
}

// shouldExitReadLoop reports whether a websocket read failure is permanent for
// the connection. Server-side errors like internal errors or service restarts
// are transient and worth retrying on the same loop.
func shouldExitReadLoop(err error) bool {
	if err == nil {
		return false
	}

	closeErr := &websocket.CloseError{}
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseAbnormalClosure:
			return true
		default:
			return false
		}
	}

	if errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
