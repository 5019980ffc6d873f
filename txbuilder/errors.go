package txbuilder

import "errors"

var (
	// ErrPacketOutputsMissing is returned when a packet with no outputs is
	// provided for funding.
	ErrPacketOutputsMissing = errors.New("psbt packet has no outputs")

	// ErrInputMissingUtxoInfo is returned when an input lacks the witness
	// utxo needed to compute its sighash.
	ErrInputMissingUtxoInfo = errors.New("input missing witness utxo")

	// ErrNoPsbtsToCombine is returned when no packets are provided to
	// Combine.
	ErrNoPsbtsToCombine = errors.New("no psbts to combine")

	// ErrDifferentTransactions is returned when combined packets do not
	// refer to the same unsigned transaction.
	ErrDifferentTransactions = errors.New("psbts do not refer to the same transaction")

	// ErrNothingToSign is returned when no input of a packet is spendable
	// by the signing key.
	ErrNothingToSign = errors.New("no input spendable by the signing key")
)
