package types_test

import (
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/satconnect/go-sdk/types"
	"github.com/stretchr/testify/require"
)

func TestSigningHintRoundtrip(t *testing.T) {
	hint := types.SigningHint{
		SighashType: uint32(txscript.SigHashSingle | txscript.SigHashAnyOneCanPay),
		LeafScript:  []byte{txscript.OP_TRUE},
		LeafVersion: 0xc0,
	}

	encoded, err := hint.Encode()
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded := types.SigningHint{}
	require.NoError(t, decoded.Decode(encoded))
	require.Equal(t, hint.SighashType, decoded.SighashType)
	require.Equal(t, hint.LeafScript, decoded.LeafScript)
	require.Equal(t, hint.LeafVersion, decoded.LeafVersion)
}

func TestSigningHintKeySpendOnly(t *testing.T) {
	hint := types.SigningHint{SighashType: uint32(txscript.SigHashDefault)}

	encoded, err := hint.Encode()
	require.NoError(t, err)

	decoded := types.SigningHint{}
	require.NoError(t, decoded.Decode(encoded))
	require.Empty(t, decoded.LeafScript)
}

func TestSigningHintDecodeErrors(t *testing.T) {
	decoded := types.SigningHint{}
	require.Error(t, decoded.Decode([]byte{0xff}))

	// A stream carrying only the leaf script record, no sighash.
	onlyLeaf := []byte{0x03, 0x01, txscript.OP_TRUE}
	err := decoded.Decode(onlyLeaf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing sighash")
}
