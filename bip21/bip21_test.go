package bip21_test

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/satconnect/go-sdk/bip21"
	"github.com/stretchr/testify/require"
)

// Donation invoice from the BOLT11 test vectors, no amount.
const testInvoice = "lnbc1pvjluezpp5qqqsyqcyq5rqwzqfqqqsyqcyq5rqwzqfqqqsyqcyq5rqwzqfqypqdpl2pkx2ctnv5sxxmmwwd5kgetjypeh2ursdae8g6twvus8g6rfwvs8qun0dfjkxaq8rkx3yf5tcsyz3d73gafnh3cax9rn449d9p5uxz9ezhhypd0elx87sjle52x86fux2ypatgddc6k63n7erqz25le42c4u4ecky03ylcqca784w"

func newTestAddress(t *testing.T, params *chaincfg.Params) string {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(key.PubKey().SerializeCompressed()), params,
	)
	require.NoError(t, err)
	return addr.EncodeAddress()
}

func TestIsURI(t *testing.T) {
	require.True(t, bip21.IsURI("bitcoin:bcrt1qsomething"))
	require.True(t, bip21.IsURI("BITCOIN:bcrt1qsomething"))
	require.False(t, bip21.IsURI("bcrt1qsomething"))
	require.False(t, bip21.IsURI("litecoin:something"))
}

func TestParse(t *testing.T) {
	params := &chaincfg.RegressionNetParams
	addr := newTestAddress(t, params)

	t.Run("bare address", func(t *testing.T) {
		req, err := bip21.Parse("bitcoin:"+addr, params)
		require.NoError(t, err)
		require.Equal(t, addr, req.Address)
		require.Zero(t, req.Amount)
		require.Empty(t, req.Label)
	})

	t.Run("full uri", func(t *testing.T) {
		uri := fmt.Sprintf(
			"bitcoin:%s?amount=0.0005&label=Satoshi&message=Donation%%20for%%20project",
			addr,
		)
		req, err := bip21.Parse(uri, params)
		require.NoError(t, err)
		require.Equal(t, addr, req.Address)
		require.Equal(t, uint64(50000), req.Amount)
		require.Equal(t, "Satoshi", req.Label)
		require.Equal(t, "Donation for project", req.Message)
	})

	t.Run("unknown params preserved", func(t *testing.T) {
		req, err := bip21.Parse("bitcoin:"+addr+"?somethingyoudontunderstand=50", params)
		require.NoError(t, err)
		require.Equal(t, "50", req.OtherParams["somethingyoudontunderstand"])
	})

	t.Run("lightning param", func(t *testing.T) {
		req, err := bip21.Parse("bitcoin:"+addr+"?lightning="+testInvoice, params)
		require.NoError(t, err)
		require.NotNil(t, req.Lightning)
		require.NotEmpty(t, req.Lightning.Payee)
	})

	t.Run("errors", func(t *testing.T) {
		fixtures := []struct {
			name string
			uri  string
		}{
			{"wrong scheme", "litecoin:" + addr},
			{"missing address", "bitcoin:?amount=1"},
			{"invalid address", "bitcoin:notanaddress"},
			{"wrong network address", "bitcoin:" + newTestAddress(t, &chaincfg.MainNetParams)},
			{"invalid amount", "bitcoin:" + addr + "?amount=abc"},
			{"negative amount", "bitcoin:" + addr + "?amount=-1"},
			{"unknown required param", "bitcoin:" + addr + "?req-somethingyoudontget=50"},
			{"invalid lightning invoice", "bitcoin:" + addr + "?lightning=notaninvoice"},
		}
		for _, f := range fixtures {
			t.Run(f.name, func(t *testing.T) {
				_, err := bip21.Parse(f.uri, params)
				require.Error(t, err)
			})
		}
	})
}

func TestFormatRoundtrip(t *testing.T) {
	params := &chaincfg.RegressionNetParams
	addr := newTestAddress(t, params)

	req := bip21.PaymentRequest{
		Address: addr,
		Amount:  150000,
		Label:   "test shop",
	}
	uri := bip21.Format(req)
	require.True(t, bip21.IsURI(uri))

	parsed, err := bip21.Parse(uri, params)
	require.NoError(t, err)
	require.Equal(t, req.Address, parsed.Address)
	require.Equal(t, req.Amount, parsed.Amount)
	require.Equal(t, req.Label, parsed.Label)
}
