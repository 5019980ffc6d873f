package types

import (
	"bytes"
	"fmt"

	"github.com/lightningnetwork/lnd/tlv"
)

// PSBT proprietary key space used to carry per-input signing hints between
// the connector and wallet providers. Providers that don't understand the
// hints ignore them; combiners carry them through untouched.
var PsbtKeyPrefix = []byte("satconnect")

const (
	hintTypeSighash     tlv.Type = 1
	hintTypeLeafScript  tlv.Type = 3
	hintTypeLeafVersion tlv.Type = 5
)

// SigningHint tells a provider how an input is expected to be signed: a
// non-default sighash type and, for taproot script-path spends, the leaf
// script to sign for.
type SigningHint struct {
	SighashType uint32
	LeafScript  []byte
	LeafVersion uint8
}

func (h *SigningHint) Encode() ([]byte, error) {
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(hintTypeSighash, &h.SighashType),
		tlv.MakePrimitiveRecord(hintTypeLeafScript, &h.LeafScript),
		tlv.MakePrimitiveRecord(hintTypeLeafVersion, &h.LeafVersion),
	)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *SigningHint) Decode(b []byte) error {
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(hintTypeSighash, &h.SighashType),
		tlv.MakePrimitiveRecord(hintTypeLeafScript, &h.LeafScript),
		tlv.MakePrimitiveRecord(hintTypeLeafVersion, &h.LeafVersion),
	)
	if err != nil {
		return err
	}

	parsed, err := stream.DecodeWithParsedTypes(bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("invalid signing hint: %w", err)
	}
	if _, ok := parsed[hintTypeSighash]; !ok {
		return fmt.Errorf("invalid signing hint: missing sighash record")
	}
	return nil
}
