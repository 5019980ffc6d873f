package txbuilder

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	log "github.com/sirupsen/logrus"
)

// Sign adds signatures for every input of the packet spendable by the given
// key. Witness v0 pubkey hash and taproot inputs are supported, the latter
// both via key-spend and via a single-leaf script-path when a signing hint
// carries the leaf script. Returns the number of inputs signed.
func Sign(
	packet *psbt.Packet, privKey *btcec.PrivateKey, params *chaincfg.Params,
) (int, error) {
	return SignInputs(packet, privKey, params, nil)
}

// SignInputs behaves like Sign restricted to the given input indexes.
// A nil restriction signs every spendable input.
func SignInputs(
	packet *psbt.Packet, privKey *btcec.PrivateKey, params *chaincfg.Params,
	inputsToSign []int,
) (int, error) {
	if packet == nil || privKey == nil {
		return 0, fmt.Errorf("missing packet or signing key")
	}

	var restricted map[int]struct{}
	if len(inputsToSign) > 0 {
		restricted = make(map[int]struct{}, len(inputsToSign))
		for _, idx := range inputsToSign {
			if idx < 0 || idx >= len(packet.Inputs) {
				return 0, fmt.Errorf("input index %d out of bounds", idx)
			}
			restricted[idx] = struct{}{}
		}
	}

	fetcher, err := prevOutFetcher(packet)
	if err != nil {
		return 0, err
	}
	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, fetcher)

	signedCount := 0

	for i := range packet.Inputs {
		if restricted != nil {
			if _, ok := restricted[i]; !ok {
				continue
			}
		}

		in := &packet.Inputs[i]
		if in.WitnessUtxo == nil {
			return 0, fmt.Errorf("input %d: %w", i, ErrInputMissingUtxoInfo)
		}

		hint, err := ReadSigningHint(in)
		if err != nil {
			return 0, fmt.Errorf("input %d: %w", i, err)
		}

		script := in.WitnessUtxo.PkScript
		switch txscript.GetScriptClass(script) {
		case txscript.WitnessV0PubKeyHashTy:
			signed, err := signWitnessV0(packet, sigHashes, i, privKey, hint, params)
			if err != nil {
				return 0, fmt.Errorf("input %d: %w", i, err)
			}
			if signed {
				signedCount++
			}
		case txscript.WitnessV1TaprootTy:
			signed, err := signTaproot(packet, sigHashes, i, privKey, hint)
			if err != nil {
				return 0, fmt.Errorf("input %d: %w", i, err)
			}
			if signed {
				signedCount++
			}
		default:
			log.Debugf(
				"txbuilder: skipping input %d with unsupported script class %s",
				i, txscript.GetScriptClass(script),
			)
		}
	}

	if signedCount == 0 {
		return 0, ErrNothingToSign
	}

	return signedCount, nil
}

func signWitnessV0(
	packet *psbt.Packet, sigHashes *txscript.TxSigHashes, idx int,
	privKey *btcec.PrivateKey, hint *SigningHintInfo, params *chaincfg.Params,
) (bool, error) {
	in := &packet.Inputs[idx]
	pubKey := privKey.PubKey()
	pubKeyBytes := pubKey.SerializeCompressed()

	// The witness program must commit to our key hash.
	pubKeyHash := btcutil.Hash160(pubKeyBytes)
	script := in.WitnessUtxo.PkScript
	if !bytes.Equal(script[2:22], pubKeyHash) {
		return false, nil
	}

	for _, partialSig := range in.PartialSigs {
		if bytes.Equal(partialSig.PubKey, pubKeyBytes) {
			return false, nil
		}
	}

	hashType := txscript.SigHashAll
	if in.SighashType != 0 {
		hashType = in.SighashType
	}
	if hint != nil && hint.SighashType != 0 {
		hashType = hint.SighashType
	}

	// BIP143 signs over the p2pkh-equivalent script of the key hash.
	addr, err := btcutil.NewAddressPubKeyHash(pubKeyHash, params)
	if err != nil {
		return false, err
	}
	sigScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return false, err
	}

	sig, err := txscript.RawTxInWitnessSignature(
		packet.UnsignedTx, sigHashes, idx, in.WitnessUtxo.Value,
		sigScript, hashType, privKey,
	)
	if err != nil {
		return false, err
	}

	in.PartialSigs = append(in.PartialSigs, &psbt.PartialSig{
		PubKey:    pubKeyBytes,
		Signature: sig,
	})
	if in.SighashType == 0 && hashType != txscript.SigHashAll {
		in.SighashType = hashType
	}
	return true, nil
}

func signTaproot(
	packet *psbt.Packet, sigHashes *txscript.TxSigHashes, idx int,
	privKey *btcec.PrivateKey, hint *SigningHintInfo,
) (bool, error) {
	in := &packet.Inputs[idx]
	pubKey := privKey.PubKey()

	hashType := txscript.SigHashDefault
	if hint != nil && hint.SighashType != 0 {
		hashType = hint.SighashType
	}

	// Script-path spend when a leaf script hint is attached.
	if hint != nil && len(hint.LeafScript) > 0 {
		tapLeaf := txscript.NewTapLeaf(
			txscript.TapscriptLeafVersion(hint.LeafVersion), hint.LeafScript,
		)
		leafHash := tapLeaf.TapHash()

		xOnlyPub := schnorr.SerializePubKey(pubKey)
		for _, scriptSig := range in.TaprootScriptSpendSig {
			if bytes.Equal(scriptSig.XOnlyPubKey, xOnlyPub) &&
				bytes.Equal(scriptSig.LeafHash, leafHash[:]) {
				return false, nil
			}
		}

		sig, err := txscript.RawTxInTapscriptSignature(
			packet.UnsignedTx, sigHashes, idx, in.WitnessUtxo.Value,
			in.WitnessUtxo.PkScript, tapLeaf, hashType, privKey,
		)
		if err != nil {
			return false, err
		}

		in.TaprootScriptSpendSig = append(
			in.TaprootScriptSpendSig, &psbt.TaprootScriptSpendSig{
				XOnlyPubKey: xOnlyPub,
				LeafHash:    leafHash[:],
				Signature:   sig,
				SigHash:     hashType,
			},
		)
		return true, nil
	}

	// Key-spend: the output key must be our key tweaked with an empty
	// script tree (BIP86).
	outputKey := txscript.ComputeTaprootKeyNoScript(pubKey)
	script := in.WitnessUtxo.PkScript
	if !bytes.Equal(script[2:34], schnorr.SerializePubKey(outputKey)) {
		return false, nil
	}

	if len(in.TaprootKeySpendSig) > 0 {
		return false, nil
	}

	sig, err := txscript.RawTxInTaprootSignature(
		packet.UnsignedTx, sigHashes, idx, in.WitnessUtxo.Value,
		script, nil, hashType, privKey,
	)
	if err != nil {
		return false, err
	}

	in.TaprootKeySpendSig = sig
	in.TaprootInternalKey = schnorr.SerializePubKey(pubKey)
	return true, nil
}

// prevOutFetcher builds a fetcher over every input's witness utxo, required
// for both BIP143 and BIP341 sighash computation.
func prevOutFetcher(packet *psbt.Packet) (*txscript.MultiPrevOutFetcher, error) {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range packet.Inputs {
		if in.WitnessUtxo == nil {
			return nil, fmt.Errorf("input %d: %w", i, ErrInputMissingUtxoInfo)
		}
		outpoint := packet.UnsignedTx.TxIn[i].PreviousOutPoint
		fetcher.AddPrevOut(outpoint, in.WitnessUtxo)
	}
	return fetcher, nil
}
