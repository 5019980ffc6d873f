package txbuilder

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil/psbt"
)

// Combine merges the partial signatures of several packets referring to the
// same unsigned transaction into the first one. Signature material found in
// later packets is only added when missing, never overwritten.
func Combine(packets ...*psbt.Packet) (*psbt.Packet, error) {
	if len(packets) == 0 {
		return nil, ErrNoPsbtsToCombine
	}

	base := packets[0]
	baseTxid := base.UnsignedTx.TxHash()

	for _, other := range packets[1:] {
		if other.UnsignedTx.TxHash() != baseTxid {
			return nil, ErrDifferentTransactions
		}
		if len(other.Inputs) != len(base.Inputs) ||
			len(other.Outputs) != len(base.Outputs) {
			return nil, ErrDifferentTransactions
		}

		for i := range base.Inputs {
			mergeInput(&base.Inputs[i], &other.Inputs[i])
		}
	}

	return base, nil
}

func mergeInput(dst, src *psbt.PInput) {
	if dst.WitnessUtxo == nil {
		dst.WitnessUtxo = src.WitnessUtxo
	}
	if dst.NonWitnessUtxo == nil {
		dst.NonWitnessUtxo = src.NonWitnessUtxo
	}
	if dst.SighashType == 0 {
		dst.SighashType = src.SighashType
	}

	for _, partialSig := range src.PartialSigs {
		exists := false
		for _, existing := range dst.PartialSigs {
			if bytes.Equal(existing.PubKey, partialSig.PubKey) {
				exists = true
				break
			}
		}
		if !exists {
			dst.PartialSigs = append(dst.PartialSigs, partialSig)
		}
	}

	if len(dst.TaprootKeySpendSig) == 0 {
		dst.TaprootKeySpendSig = src.TaprootKeySpendSig
	}
	if len(dst.TaprootInternalKey) == 0 {
		dst.TaprootInternalKey = src.TaprootInternalKey
	}

	for _, scriptSig := range src.TaprootScriptSpendSig {
		exists := false
		for _, existing := range dst.TaprootScriptSpendSig {
			if bytes.Equal(existing.XOnlyPubKey, scriptSig.XOnlyPubKey) &&
				bytes.Equal(existing.LeafHash, scriptSig.LeafHash) {
				exists = true
				break
			}
		}
		if !exists {
			dst.TaprootScriptSpendSig = append(dst.TaprootScriptSpendSig, scriptSig)
		}
	}

	for _, leafScript := range src.TaprootLeafScript {
		exists := false
		for _, existing := range dst.TaprootLeafScript {
			if bytes.Equal(existing.Script, leafScript.Script) {
				exists = true
				break
			}
		}
		if !exists {
			dst.TaprootLeafScript = append(dst.TaprootLeafScript, leafScript)
		}
	}

	for _, unknown := range src.Unknowns {
		exists := false
		for _, existing := range dst.Unknowns {
			if bytes.Equal(existing.Key, unknown.Key) {
				exists = true
				break
			}
		}
		if !exists {
			dst.Unknowns = append(dst.Unknowns, unknown)
		}
	}
}
