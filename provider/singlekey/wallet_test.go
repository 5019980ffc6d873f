package singlekey_test

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/satconnect/go-sdk/provider"
	"github.com/satconnect/go-sdk/provider/singlekey"
	"github.com/satconnect/go-sdk/provider/singlekey/store"
	"github.com/satconnect/go-sdk/types"
	"github.com/stretchr/testify/require"
)

const testPassword = "password"

func newTestProvider(t *testing.T) provider.Provider {
	prvdr, err := singlekey.NewProvider(
		store.NewInMemoryWalletStore(), types.BitcoinRegTest,
	)
	require.NoError(t, err)
	return prvdr
}

func asLocker(t *testing.T, prvdr provider.Provider) provider.Locker {
	locker, ok := prvdr.(provider.Locker)
	require.True(t, ok)
	return locker
}

func TestCreateAndUnlock(t *testing.T) {
	ctx := context.Background()
	prvdr := newTestProvider(t)
	locker := asLocker(t, prvdr)

	// Nothing usable before the wallet is created.
	require.ErrorIs(t, prvdr.Connect(ctx), provider.ErrProviderNotInitialized)
	_, err := prvdr.PublicKey(ctx)
	require.ErrorIs(t, err, provider.ErrProviderNotInitialized)

	seed, err := locker.Create(ctx, testPassword, "")
	require.NoError(t, err)
	require.Len(t, seed, 64)

	// Creating leaves the wallet locked.
	require.True(t, locker.IsLocked())
	_, err = prvdr.SignMessage(ctx, []byte("msg"))
	require.ErrorIs(t, err, provider.ErrProviderLocked)
	_, err = locker.Dump(ctx)
	require.ErrorIs(t, err, provider.ErrProviderLocked)

	_, err = locker.Unlock(ctx, "wrong password")
	require.Error(t, err)

	alreadyUnlocked, err := locker.Unlock(ctx, testPassword)
	require.NoError(t, err)
	require.False(t, alreadyUnlocked)
	require.False(t, locker.IsLocked())

	alreadyUnlocked, err = locker.Unlock(ctx, testPassword)
	require.NoError(t, err)
	require.True(t, alreadyUnlocked)

	dumped, err := locker.Dump(ctx)
	require.NoError(t, err)
	require.Equal(t, seed, dumped)

	require.NoError(t, locker.Lock(ctx))
	require.True(t, locker.IsLocked())
}

func TestCreateErrors(t *testing.T) {
	ctx := context.Background()
	prvdr := newTestProvider(t)
	locker := asLocker(t, prvdr)

	_, err := locker.Create(ctx, "", "")
	require.EqualError(t, err, "missing password")

	_, err = locker.Create(ctx, testPassword, "not hex")
	require.Error(t, err)

	_, err = locker.Create(ctx, testPassword, "")
	require.NoError(t, err)

	_, err = locker.Create(ctx, testPassword, "")
	require.EqualError(t, err, "wallet already initialized")
}

func TestCreateWithExistingKey(t *testing.T) {
	ctx := context.Background()
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	privKeyHex := hex.EncodeToString(privKey.Serialize())

	prvdr := newTestProvider(t)
	locker := asLocker(t, prvdr)

	seed, err := locker.Create(ctx, testPassword, privKeyHex)
	require.NoError(t, err)
	require.Equal(t, privKeyHex, seed)

	pubKey, err := prvdr.PublicKey(ctx)
	require.NoError(t, err)
	require.True(t, privKey.PubKey().IsEqual(pubKey))
}

func TestWalletPersistence(t *testing.T) {
	ctx := context.Background()
	datadir := t.TempDir()

	walletStore, err := store.NewFileWalletStore(datadir)
	require.NoError(t, err)

	prvdr, err := singlekey.NewProvider(walletStore, types.BitcoinRegTest)
	require.NoError(t, err)
	seed, err := asLocker(t, prvdr).Create(ctx, testPassword, "")
	require.NoError(t, err)
	prvdr.Close()

	// A fresh provider on the same store sees the wallet.
	reopenedStore, err := store.NewFileWalletStore(datadir)
	require.NoError(t, err)
	reopened, err := singlekey.NewProvider(reopenedStore, types.BitcoinRegTest)
	require.NoError(t, err)

	status, err := reopened.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Initialized)
	require.False(t, status.Unlocked)

	locker := asLocker(t, reopened)
	_, err = locker.Unlock(ctx, testPassword)
	require.NoError(t, err)
	dumped, err := locker.Dump(ctx)
	require.NoError(t, err)
	require.Equal(t, seed, dumped)
}

func TestAddresses(t *testing.T) {
	ctx := context.Background()
	prvdr := newTestProvider(t)
	_, err := asLocker(t, prvdr).Create(ctx, testPassword, "")
	require.NoError(t, err)

	addresses, err := prvdr.Addresses(ctx)
	require.NoError(t, err)
	require.Len(t, addresses, 2)
	require.Equal(t, types.AddressP2WPKH, addresses[0].Type)
	require.Equal(t, types.AddressP2TR, addresses[1].Type)
	for _, addr := range addresses {
		require.True(t, strings.HasPrefix(addr.Address, "bcrt1"))
	}

	// The default receive address is the taproot one.
	addr, err := prvdr.NewAddress(ctx, false)
	require.NoError(t, err)
	require.Equal(t, types.AddressP2TR, addr.Type)

	// Switching networks re-derives with the new chain prefix.
	require.NoError(t, prvdr.SwitchNetwork(ctx, types.BitcoinSigNet))
	addr, err = prvdr.NewAddress(ctx, false)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(addr.Address, "tb1"))

	net, err := prvdr.Network(ctx)
	require.NoError(t, err)
	require.Equal(t, types.BitcoinSigNet.Name, net.Name)
}

func TestSignAndVerifyMessage(t *testing.T) {
	ctx := context.Background()
	prvdr := newTestProvider(t)
	locker := asLocker(t, prvdr)
	_, err := locker.Create(ctx, testPassword, "")
	require.NoError(t, err)
	_, err = locker.Unlock(ctx, testPassword)
	require.NoError(t, err)

	message := []byte("satconnect proves ownership")
	sig, err := prvdr.SignMessage(ctx, message)
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	pubKey, err := prvdr.PublicKey(ctx)
	require.NoError(t, err)

	valid, err := singlekey.VerifyMessage(pubKey, message, sig)
	require.NoError(t, err)
	require.True(t, valid)

	valid, err = singlekey.VerifyMessage(pubKey, []byte("another message"), sig)
	require.NoError(t, err)
	require.False(t, valid)

	_, err = singlekey.VerifyMessage(pubKey, message, "not hex")
	require.Error(t, err)
}

func TestSignPsbt(t *testing.T) {
	ctx := context.Background()
	prvdr := newTestProvider(t)
	locker := asLocker(t, prvdr)
	_, err := locker.Create(ctx, testPassword, "")
	require.NoError(t, err)

	addresses, err := prvdr.Addresses(ctx)
	require.NoError(t, err)

	packet := newPacketSpending(t, addresses[0].Address)

	// Signing requires the key in memory.
	_, err = prvdr.SignPsbt(ctx, packet, provider.SignPsbtOptions{})
	require.ErrorIs(t, err, provider.ErrProviderLocked)

	_, err = locker.Unlock(ctx, testPassword)
	require.NoError(t, err)

	signed, err := prvdr.SignPsbt(ctx, packet, provider.SignPsbtOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, signed)
	require.NotEmpty(t, packet.Inputs[0].PartialSigs)
}

// newPacketSpending builds a one-in one-out packet whose input pays to the
// given address.
func newPacketSpending(t *testing.T, address string) *psbt.Packet {
	addr, err := btcutil.DecodeAddress(address, types.BitcoinRegTest.ChainParams())
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	prevHash, err := chainhash.NewHashFromStr(
		"0000000000000000000000000000000000000000000000000000000000000001",
	)
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(prevHash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(40000, script))

	packet, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	packet.Inputs[0].WitnessUtxo = wire.NewTxOut(50000, script)
	return packet
}
