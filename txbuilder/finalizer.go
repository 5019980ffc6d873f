package txbuilder

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// Finalize completes every input of the packet and extracts the wire
// transaction. Returns the raw transaction hex and its txid.
func Finalize(packet *psbt.Packet) (string, string, error) {
	if err := psbt.MaybeFinalizeAll(packet); err != nil {
		return "", "", fmt.Errorf("failed to finalize psbt: %w", err)
	}

	extracted, err := psbt.Extract(packet)
	if err != nil {
		return "", "", fmt.Errorf("failed to extract tx: %w", err)
	}

	var buf bytes.Buffer
	if err := extracted.Serialize(&buf); err != nil {
		return "", "", err
	}

	return hex.EncodeToString(buf.Bytes()), extracted.TxHash().String(), nil
}

// ParsePacket decodes a base64 PSBT.
func ParsePacket(psbtB64 string) (*psbt.Packet, error) {
	packet, err := psbt.NewFromRawBytes(bytes.NewReader([]byte(psbtB64)), true)
	if err != nil {
		return nil, fmt.Errorf("invalid psbt: %w", err)
	}
	return packet, nil
}

// EncodePacket renders a packet in its base64 form.
func EncodePacket(packet *psbt.Packet) (string, error) {
	return packet.B64Encode()
}

// ParseTx decodes a raw transaction hex.
func ParseTx(txHex string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("invalid tx hex: %w", err)
	}
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("invalid tx: %w", err)
	}
	return tx, nil
}
