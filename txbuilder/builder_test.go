package txbuilder_test

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/satconnect/go-sdk/txbuilder"
	"github.com/satconnect/go-sdk/types"
	"github.com/stretchr/testify/require"
)

var testParams = &chaincfg.RegressionNetParams

func newTestKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return privKey
}

func p2wpkhAddress(t *testing.T, privKey *btcec.PrivateKey) (string, []byte) {
	t.Helper()
	pubKeyHash := btcutil.Hash160(privKey.PubKey().SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, testParams)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return addr.EncodeAddress(), script
}

func p2trAddress(t *testing.T, privKey *btcec.PrivateKey) (string, []byte) {
	t.Helper()
	outputKey := txscript.ComputeTaprootKeyNoScript(privKey.PubKey())
	addr, err := btcutil.NewAddressTaproot(
		outputKey.SerializeCompressed()[1:], testParams,
	)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return addr.EncodeAddress(), script
}

func newTestUtxo(index int, script []byte, amount uint64) types.Utxo {
	txid := fmt.Sprintf("%064d", index)
	return types.Utxo{
		Outpoint:  types.Outpoint{Txid: txid, VOut: 0},
		Amount:    amount,
		Script:    hex.EncodeToString(script),
		CreatedAt: time.Now(),
	}
}

func TestCreate(t *testing.T) {
	key := newTestKey(t)
	addr, _ := p2wpkhAddress(t, key)

	t.Run("valid", func(t *testing.T) {
		packet, err := txbuilder.Create(
			[]types.Receiver{{To: addr, Amount: 10000}},
			testParams, txbuilder.CreateOptions{},
		)
		require.NoError(t, err)
		require.Len(t, packet.UnsignedTx.TxOut, 1)
		require.Equal(t, int64(10000), packet.UnsignedTx.TxOut[0].Value)
		require.Empty(t, packet.UnsignedTx.TxIn)
	})

	t.Run("missing receivers", func(t *testing.T) {
		_, err := txbuilder.Create(nil, testParams, txbuilder.CreateOptions{})
		require.Error(t, err)
	})

	t.Run("zero amount", func(t *testing.T) {
		_, err := txbuilder.Create(
			[]types.Receiver{{To: addr, Amount: 0}},
			testParams, txbuilder.CreateOptions{},
		)
		require.Error(t, err)
	})

	t.Run("invalid address", func(t *testing.T) {
		_, err := txbuilder.Create(
			[]types.Receiver{{To: "not an address", Amount: 10000}},
			testParams, txbuilder.CreateOptions{},
		)
		require.Error(t, err)
	})
}

func TestFundSignFinalize(t *testing.T) {
	key := newTestKey(t)
	_, wpkhScript := p2wpkhAddress(t, key)
	changeAddr, _ := p2wpkhAddress(t, key)
	_, trScript := p2trAddress(t, key)

	receiverKey := newTestKey(t)
	receiverAddr, _ := p2wpkhAddress(t, receiverKey)

	utxos := []types.Utxo{
		newTestUtxo(1, wpkhScript, 50000),
		newTestUtxo(2, trScript, 50000),
	}

	packet, err := txbuilder.Create(
		[]types.Receiver{{To: receiverAddr, Amount: 60000}},
		testParams, txbuilder.CreateOptions{Rbf: true},
	)
	require.NoError(t, err)

	selected, fee, err := txbuilder.Fund(packet, utxos, testParams, txbuilder.FundOptions{
		FeeRate:       2,
		ChangeAddress: changeAddr,
		Dust:          546,
		Rbf:           true,
	})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	require.Greater(t, fee, uint64(0))
	require.Len(t, packet.UnsignedTx.TxIn, 2)
	for _, in := range packet.UnsignedTx.TxIn {
		require.Equal(t, uint32(wire.MaxTxInSequenceNum-2), in.Sequence)
	}

	// inputs + change must cover outputs + fee exactly
	totalOut := uint64(0)
	for _, out := range packet.UnsignedTx.TxOut {
		totalOut += uint64(out.Value)
	}
	require.Equal(t, uint64(100000), totalOut+fee)

	estimated, err := txbuilder.Fee(packet)
	require.NoError(t, err)
	require.Equal(t, fee, estimated)

	signedCount, err := txbuilder.Sign(packet, key, testParams)
	require.NoError(t, err)
	require.Equal(t, 2, signedCount)

	txHex, txid, err := txbuilder.Finalize(packet)
	require.NoError(t, err)
	require.NotEmpty(t, txHex)
	require.Len(t, txid, 64)

	tx, err := txbuilder.ParseTx(txHex)
	require.NoError(t, err)
	require.Equal(t, txid, tx.TxHash().String())
	for _, in := range tx.TxIn {
		require.NotEmpty(t, in.Witness)
	}
}

func TestFundErrors(t *testing.T) {
	key := newTestKey(t)
	addr, script := p2wpkhAddress(t, key)

	t.Run("insufficient funds", func(t *testing.T) {
		packet, err := txbuilder.Create(
			[]types.Receiver{{To: addr, Amount: 100000}},
			testParams, txbuilder.CreateOptions{},
		)
		require.NoError(t, err)

		_, _, err = txbuilder.Fund(
			packet, []types.Utxo{newTestUtxo(1, script, 1000)},
			testParams, txbuilder.FundOptions{FeeRate: 1, ChangeAddress: addr},
		)
		require.Error(t, err)
	})

	t.Run("unconfirmed skipped", func(t *testing.T) {
		packet, err := txbuilder.Create(
			[]types.Receiver{{To: addr, Amount: 10000}},
			testParams, txbuilder.CreateOptions{},
		)
		require.NoError(t, err)

		unconfirmed := newTestUtxo(1, script, 50000)
		unconfirmed.CreatedAt = time.Time{}

		_, _, err = txbuilder.Fund(
			packet, []types.Utxo{unconfirmed},
			testParams, txbuilder.FundOptions{FeeRate: 1, ChangeAddress: addr},
		)
		require.Error(t, err)

		selected, _, err := txbuilder.Fund(
			packet, []types.Utxo{unconfirmed},
			testParams, txbuilder.FundOptions{
				FeeRate: 1, ChangeAddress: addr, SpendUnconfirmed: true,
			},
		)
		require.NoError(t, err)
		require.Len(t, selected, 1)
	})

	t.Run("no outputs", func(t *testing.T) {
		_, _, err := txbuilder.Fund(
			nil, nil, testParams, txbuilder.FundOptions{},
		)
		require.ErrorIs(t, err, txbuilder.ErrPacketOutputsMissing)
	})
}

func TestSignInputsRestricted(t *testing.T) {
	key := newTestKey(t)
	addr, script := p2wpkhAddress(t, key)

	packet, err := txbuilder.Create(
		[]types.Receiver{{To: addr, Amount: 70000}},
		testParams, txbuilder.CreateOptions{},
	)
	require.NoError(t, err)

	_, _, err = txbuilder.Fund(
		packet,
		[]types.Utxo{newTestUtxo(1, script, 50000), newTestUtxo(2, script, 50000)},
		testParams, txbuilder.FundOptions{FeeRate: 1, ChangeAddress: addr},
	)
	require.NoError(t, err)
	require.Len(t, packet.UnsignedTx.TxIn, 2)

	signedCount, err := txbuilder.SignInputs(packet, key, testParams, []int{0})
	require.NoError(t, err)
	require.Equal(t, 1, signedCount)
	require.Len(t, packet.Inputs[0].PartialSigs, 1)
	require.Empty(t, packet.Inputs[1].PartialSigs)

	_, err = txbuilder.SignInputs(packet, key, testParams, []int{5})
	require.Error(t, err)
}

func TestSignNothingToSign(t *testing.T) {
	key := newTestKey(t)
	otherKey := newTestKey(t)
	addr, script := p2wpkhAddress(t, key)

	packet, err := txbuilder.Create(
		[]types.Receiver{{To: addr, Amount: 10000}},
		testParams, txbuilder.CreateOptions{},
	)
	require.NoError(t, err)

	_, _, err = txbuilder.Fund(
		packet, []types.Utxo{newTestUtxo(1, script, 50000)},
		testParams, txbuilder.FundOptions{FeeRate: 1, ChangeAddress: addr},
	)
	require.NoError(t, err)

	_, err = txbuilder.Sign(packet, otherKey, testParams)
	require.ErrorIs(t, err, txbuilder.ErrNothingToSign)
}

func TestCombine(t *testing.T) {
	key1 := newTestKey(t)
	key2 := newTestKey(t)
	addr1, script1 := p2wpkhAddress(t, key1)
	_, script2 := p2wpkhAddress(t, key2)

	receiverKey := newTestKey(t)
	receiverAddr, _ := p2wpkhAddress(t, receiverKey)

	packet, err := txbuilder.Create(
		[]types.Receiver{{To: receiverAddr, Amount: 70000}},
		testParams, txbuilder.CreateOptions{},
	)
	require.NoError(t, err)

	_, _, err = txbuilder.Fund(
		packet,
		[]types.Utxo{newTestUtxo(1, script1, 50000), newTestUtxo(2, script2, 50000)},
		testParams, txbuilder.FundOptions{FeeRate: 1, ChangeAddress: addr1},
	)
	require.NoError(t, err)

	// two signing sessions over copies of the same packet
	encoded, err := txbuilder.EncodePacket(packet)
	require.NoError(t, err)

	copy1, err := txbuilder.ParsePacket(encoded)
	require.NoError(t, err)
	copy2, err := txbuilder.ParsePacket(encoded)
	require.NoError(t, err)

	_, err = txbuilder.Sign(copy1, key1, testParams)
	require.NoError(t, err)
	_, err = txbuilder.Sign(copy2, key2, testParams)
	require.NoError(t, err)

	combined, err := txbuilder.Combine(copy1, copy2)
	require.NoError(t, err)

	txHex, txid, err := txbuilder.Finalize(combined)
	require.NoError(t, err)
	require.NotEmpty(t, txHex)
	require.NotEmpty(t, txid)
}

func TestCombineErrors(t *testing.T) {
	key := newTestKey(t)
	addr, script := p2wpkhAddress(t, key)

	t.Run("no packets", func(t *testing.T) {
		_, err := txbuilder.Combine()
		require.ErrorIs(t, err, txbuilder.ErrNoPsbtsToCombine)
	})

	t.Run("different transactions", func(t *testing.T) {
		packet1, err := txbuilder.Create(
			[]types.Receiver{{To: addr, Amount: 10000}},
			testParams, txbuilder.CreateOptions{},
		)
		require.NoError(t, err)
		packet2, err := txbuilder.Create(
			[]types.Receiver{{To: addr, Amount: 20000}},
			testParams, txbuilder.CreateOptions{},
		)
		require.NoError(t, err)

		_, _, err = txbuilder.Fund(
			packet1, []types.Utxo{newTestUtxo(1, script, 50000)},
			testParams, txbuilder.FundOptions{FeeRate: 1, ChangeAddress: addr},
		)
		require.NoError(t, err)
		_, _, err = txbuilder.Fund(
			packet2, []types.Utxo{newTestUtxo(2, script, 50000)},
			testParams, txbuilder.FundOptions{FeeRate: 1, ChangeAddress: addr},
		)
		require.NoError(t, err)

		_, err = txbuilder.Combine(packet1, packet2)
		require.ErrorIs(t, err, txbuilder.ErrDifferentTransactions)
	})
}

func TestSigningHints(t *testing.T) {
	key := newTestKey(t)
	addr, script := p2wpkhAddress(t, key)

	packet, err := txbuilder.Create(
		[]types.Receiver{{To: addr, Amount: 10000}},
		testParams, txbuilder.CreateOptions{},
	)
	require.NoError(t, err)

	_, _, err = txbuilder.Fund(
		packet, []types.Utxo{newTestUtxo(1, script, 50000)},
		testParams, txbuilder.FundOptions{FeeRate: 1, ChangeAddress: addr},
	)
	require.NoError(t, err)

	leafScript := []byte{txscript.OP_TRUE}
	err = txbuilder.AttachSigningHint(packet, 0, txbuilder.SigningHintInfo{
		SighashType: txscript.SigHashSingle | txscript.SigHashAnyOneCanPay,
		LeafScript:  leafScript,
		LeafVersion: 0xc0,
	})
	require.NoError(t, err)

	// hints must survive a serialization roundtrip
	encoded, err := txbuilder.EncodePacket(packet)
	require.NoError(t, err)
	decoded, err := txbuilder.ParsePacket(encoded)
	require.NoError(t, err)

	hint, err := txbuilder.ReadSigningHint(&decoded.Inputs[0])
	require.NoError(t, err)
	require.NotNil(t, hint)
	require.Equal(t, txscript.SigHashSingle|txscript.SigHashAnyOneCanPay, hint.SighashType)
	require.Equal(t, leafScript, hint.LeafScript)
	require.Equal(t, uint8(0xc0), hint.LeafVersion)
}
