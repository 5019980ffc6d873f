// Package txbuilder assembles, funds, signs, combines and finalizes
// partially signed bitcoin transactions (PSBTs).
package txbuilder

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/lightningnetwork/lnd/input"
	"github.com/satconnect/go-sdk/internal/utils"
	"github.com/satconnect/go-sdk/types"
)

const (
	// rbfSequence signals opt-in replace-by-fee per BIP125.
	rbfSequence = wire.MaxTxInSequenceNum - 2
	// finalSequence disables RBF signaling.
	finalSequence = wire.MaxTxInSequenceNum - 1

	maxFundingRounds = 10
)

// CreateOptions tweaks the initial packet construction.
type CreateOptions struct {
	Rbf      bool
	LockTime uint32
}

// Create builds an unfunded packet paying the given receivers.
func Create(
	receivers []types.Receiver, params *chaincfg.Params, opts CreateOptions,
) (*psbt.Packet, error) {
	if len(receivers) == 0 {
		return nil, fmt.Errorf("missing receivers")
	}

	outputs := make([]*wire.TxOut, 0, len(receivers))
	for _, receiver := range receivers {
		if receiver.Amount == 0 {
			return nil, fmt.Errorf("zero amount for receiver %s", receiver.To)
		}
		txOut, err := receiver.ToTxOut(params)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, txOut)
	}

	packet, err := psbt.New(nil, outputs, 2, opts.LockTime, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create packet: %w", err)
	}
	return packet, nil
}

// FundOptions drives coin selection and fee calculation.
type FundOptions struct {
	// FeeRate in sat/vB. Values below 1 are raised to 1.
	FeeRate float64
	// ChangeAddress receives any non-dust change.
	ChangeAddress string
	// SpendUnconfirmed allows selecting unconfirmed coins.
	SpendUnconfirmed bool
	// Dust below which change is dropped into fees.
	Dust uint64
	Rbf  bool
}

// Fund selects coins for the packet's outputs plus fees, attaches them as
// witness inputs and appends a change output when above dust. It returns
// the selected coins and the final fee.
func Fund(
	packet *psbt.Packet, utxos []types.Utxo, params *chaincfg.Params, opts FundOptions,
) ([]types.Utxo, uint64, error) {
	if packet == nil || len(packet.UnsignedTx.TxOut) == 0 {
		return nil, 0, ErrPacketOutputsMissing
	}
	if len(packet.UnsignedTx.TxIn) > 0 {
		return nil, 0, fmt.Errorf("packet is already funded")
	}

	feeRate := opts.FeeRate
	if feeRate < 1 {
		feeRate = 1
	}

	target := uint64(0)
	for _, out := range packet.UnsignedTx.TxOut {
		target += uint64(out.Value)
	}

	changeScript, err := changePkScript(opts.ChangeAddress, params)
	if err != nil {
		return nil, 0, err
	}

	// Selection and fees depend on each other, iterate until the selected
	// set stops changing.
	var selected []types.Utxo
	var change, fee uint64
	for round := 0; ; round++ {
		if round >= maxFundingRounds {
			return nil, 0, fmt.Errorf("coin selection did not converge")
		}

		selected, change, err = utils.CoinSelect(
			utxos, target+fee, opts.Dust, opts.SpendUnconfirmed,
		)
		if err != nil {
			return nil, 0, err
		}

		newFee, err := estimateFee(packet, selected, changeScript, change, feeRate)
		if err != nil {
			return nil, 0, err
		}
		if newFee == fee {
			break
		}
		fee = newFee
	}

	sequence := uint32(finalSequence)
	if opts.Rbf {
		sequence = rbfSequence
	}

	for _, utxo := range selected {
		hash, err := chainhash.NewHashFromStr(utxo.Txid)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid utxo txid %s: %w", utxo.Txid, err)
		}
		packet.UnsignedTx.TxIn = append(packet.UnsignedTx.TxIn, &wire.TxIn{
			PreviousOutPoint: *wire.NewOutPoint(hash, utxo.VOut),
			Sequence:         sequence,
		})

		script, err := hex.DecodeString(utxo.Script)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid utxo script: %w", err)
		}
		packet.Inputs = append(packet.Inputs, psbt.PInput{
			WitnessUtxo: &wire.TxOut{
				Value:    int64(utxo.Amount),
				PkScript: script,
			},
		})
	}

	if change > 0 {
		changeOut := &wire.TxOut{
			Value:    int64(change),
			PkScript: changeScript,
		}
		if !txrules.IsDustOutput(changeOut, txrules.DefaultRelayFeePerKb) {
			packet.UnsignedTx.TxOut = append(packet.UnsignedTx.TxOut, changeOut)
			packet.Outputs = append(packet.Outputs, psbt.POutput{})
		}
	}

	return selected, fee, nil
}

func changePkScript(addr string, params *chaincfg.Params) ([]byte, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing change address")
	}
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, fmt.Errorf("invalid change address '%s': %w", addr, err)
	}
	return txscript.PayToAddrScript(decoded)
}

// estimateFee computes the fee of the fully signed transaction shape using
// per input/output weight accounting.
func estimateFee(
	packet *psbt.Packet, selected []types.Utxo, changeScript []byte,
	change uint64, feeRate float64,
) (uint64, error) {
	var estimator input.TxWeightEstimator

	for _, utxo := range selected {
		script, err := hex.DecodeString(utxo.Script)
		if err != nil {
			return 0, fmt.Errorf("invalid utxo script: %w", err)
		}
		switch txscript.GetScriptClass(script) {
		case txscript.WitnessV0PubKeyHashTy:
			estimator.AddP2WKHInput()
		case txscript.WitnessV1TaprootTy:
			estimator.AddTaprootKeySpendInput(txscript.SigHashDefault)
		default:
			return 0, fmt.Errorf(
				"unsupported utxo script type %s for %s",
				txscript.GetScriptClass(script), utxo.Outpoint,
			)
		}
	}

	for _, out := range packet.UnsignedTx.TxOut {
		estimator.AddTxOutput(out)
	}
	if change > 0 {
		estimator.AddTxOutput(&wire.TxOut{
			Value:    int64(change),
			PkScript: changeScript,
		})
	}

	return uint64(math.Ceil(feeRate * float64(estimator.VSize()))), nil
}

// Fee returns the implicit fee of a funded packet, inputs minus outputs.
func Fee(packet *psbt.Packet) (uint64, error) {
	totalIn := int64(0)
	for i, in := range packet.Inputs {
		if in.WitnessUtxo == nil {
			return 0, fmt.Errorf("input %d: %w", i, ErrInputMissingUtxoInfo)
		}
		totalIn += in.WitnessUtxo.Value
	}
	totalOut := int64(0)
	for _, out := range packet.UnsignedTx.TxOut {
		totalOut += out.Value
	}
	if totalOut > totalIn {
		return 0, fmt.Errorf("outputs exceed inputs by %d", totalOut-totalIn)
	}
	return uint64(totalIn - totalOut), nil
}
