package utils_test

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/satconnect/go-sdk/internal/utils"
	"github.com/satconnect/go-sdk/types"
	"github.com/stretchr/testify/require"
)

func newUtxo(txid string, amount uint64, confirmed bool) types.Utxo {
	utxo := types.Utxo{
		Outpoint: types.Outpoint{Txid: txid, VOut: 0},
		Amount:   amount,
	}
	if confirmed {
		utxo.CreatedAt = time.Now()
	}
	return utxo
}

func TestCoinSelect(t *testing.T) {
	utxos := []types.Utxo{
		newUtxo("aa", 10000, true),
		newUtxo("bb", 50000, true),
		newUtxo("cc", 30000, true),
	}

	t.Run("largest first", func(t *testing.T) {
		selected, change, err := utils.CoinSelect(utxos, 60000, 546, false)
		require.NoError(t, err)
		require.Len(t, selected, 2)
		require.Equal(t, "bb", selected[0].Txid)
		require.Equal(t, "cc", selected[1].Txid)
		require.Equal(t, uint64(20000), change)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		_, _, err := utils.CoinSelect(utxos, 100000, 546, false)
		require.Error(t, err)
		require.Contains(t, err.Error(), "not enough funds")
	})

	t.Run("unconfirmed excluded by default", func(t *testing.T) {
		pool := []types.Utxo{
			newUtxo("aa", 40000, true),
			newUtxo("bb", 40000, false),
		}
		_, _, err := utils.CoinSelect(pool, 60000, 546, false)
		require.Error(t, err)

		selected, _, err := utils.CoinSelect(pool, 60000, 546, true)
		require.NoError(t, err)
		require.Len(t, selected, 2)
	})

	t.Run("locked and spent never selected", func(t *testing.T) {
		locked := newUtxo("aa", 50000, true)
		locked.Locked = true
		spent := newUtxo("bb", 50000, true)
		spent.Spent = true
		_, _, err := utils.CoinSelect([]types.Utxo{locked, spent}, 10000, 546, true)
		require.Error(t, err)
	})

	t.Run("sub-dust change folded into fees", func(t *testing.T) {
		selected, change, err := utils.CoinSelect(
			[]types.Utxo{newUtxo("aa", 10200, true)}, 10000, 546, false,
		)
		require.NoError(t, err)
		require.Len(t, selected, 1)
		require.Zero(t, change)
	})
}

func TestEncryptDecryptAES256(t *testing.T) {
	key := []byte("very secret key material 32bytes")
	password := []byte("password")

	encrypted, err := utils.EncryptAES256(key, password)
	require.NoError(t, err)
	require.NotEqual(t, key, encrypted)

	decrypted, err := utils.DecryptAES256(encrypted, password)
	require.NoError(t, err)
	require.Equal(t, key, decrypted)

	_, err = utils.DecryptAES256(encrypted, []byte("wrong password"))
	require.EqualError(t, err, "invalid password")

	_, err = utils.EncryptAES256(nil, password)
	require.Error(t, err)
	_, err = utils.EncryptAES256(key, nil)
	require.Error(t, err)

	// Two encryptions of the same plaintext never share salt or nonce.
	again, err := utils.EncryptAES256(key, password)
	require.NoError(t, err)
	require.NotEqual(t, encrypted, again)
}

func TestHashPassword(t *testing.T) {
	first := utils.HashPassword([]byte("password"))
	require.Len(t, first, 32)
	require.Equal(t, first, utils.HashPassword([]byte("password")))
	require.NotEqual(t, first, utils.HashPassword([]byte("other")))
}

func TestParseBitcoinAddress(t *testing.T) {
	params := &chaincfg.RegressionNetParams

	valid, script, err := utils.ParseBitcoinAddress("not an address", params)
	require.NoError(t, err)
	require.False(t, valid)
	require.Nil(t, script)

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(key.PubKey().SerializeCompressed()), params,
	)
	require.NoError(t, err)

	valid, script, err = utils.ParseBitcoinAddress(addr.EncodeAddress(), params)
	require.NoError(t, err)
	require.True(t, valid)
	require.NotEmpty(t, script)
}

func TestSupportedType(t *testing.T) {
	supported := utils.SupportedType[struct{}]{"badger": {}, "sqlite": {}}
	require.True(t, supported.Supports("badger"))
	require.False(t, supported.Supports("postgres"))
	require.Equal(t, "badger | sqlite", supported.String())
}

func TestGroupBy(t *testing.T) {
	utxos := []types.Utxo{
		{Outpoint: types.Outpoint{Txid: "aa"}, Address: "addr1"},
		{Outpoint: types.Outpoint{Txid: "bb"}, Address: "addr2"},
		{Outpoint: types.Outpoint{Txid: "cc"}, Address: "addr1"},
	}
	grouped := utils.GroupBy(utxos, func(u types.Utxo) string { return u.Address })
	require.Len(t, grouped, 2)
	require.Len(t, grouped["addr1"], 2)
	require.Len(t, grouped["addr2"], 1)
}

func TestCache(t *testing.T) {
	cache := utils.NewCache[string]()
	_, ok := cache.Get("missing")
	require.False(t, ok)

	cache.Set("txid", "rawhex")
	v, ok := cache.Get("txid")
	require.True(t, ok)
	require.Equal(t, "rawhex", v)
	require.Equal(t, 1, cache.Len())

	cache.Delete("txid")
	require.Zero(t, cache.Len())
}
