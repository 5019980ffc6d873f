package txbuilder

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/satconnect/go-sdk/types"
)

// SigningHintInfo is the in-memory form of a types.SigningHint carried in
// the packet's proprietary key space.
type SigningHintInfo struct {
	SighashType txscript.SigHashType
	LeafScript  []byte
	LeafVersion uint8
}

func hintKey() []byte {
	return append([]byte{0xfc}, types.PsbtKeyPrefix...)
}

// AttachSigningHint stores the hint on the given input, replacing any
// previous one.
func AttachSigningHint(packet *psbt.Packet, inputIndex int, hint SigningHintInfo) error {
	encoded, err := (&types.SigningHint{
		SighashType: uint32(hint.SighashType),
		LeafScript:  hint.LeafScript,
		LeafVersion: hint.LeafVersion,
	}).Encode()
	if err != nil {
		return err
	}

	in := &packet.Inputs[inputIndex]
	key := hintKey()
	for _, unknown := range in.Unknowns {
		if bytes.Equal(unknown.Key, key) {
			unknown.Value = encoded
			return nil
		}
	}
	in.Unknowns = append(in.Unknowns, &psbt.Unknown{
		Key:   key,
		Value: encoded,
	})
	return nil
}

// ReadSigningHint returns the hint attached to the input, nil when absent.
func ReadSigningHint(in *psbt.PInput) (*SigningHintInfo, error) {
	key := hintKey()
	for _, unknown := range in.Unknowns {
		if !bytes.Equal(unknown.Key, key) {
			continue
		}

		hint := &types.SigningHint{}
		if err := hint.Decode(unknown.Value); err != nil {
			return nil, err
		}
		return &SigningHintInfo{
			SighashType: txscript.SigHashType(hint.SighashType),
			LeafScript:  hint.LeafScript,
			LeafVersion: hint.LeafVersion,
		}, nil
	}
	return nil, nil
}
