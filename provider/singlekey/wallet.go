// Package singlekey implements an in-process software wallet provider
// backed by one secp256k1 key, kept encrypted at rest.
package singlekey

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/satconnect/go-sdk/internal/utils"
	"github.com/satconnect/go-sdk/provider"
	"github.com/satconnect/go-sdk/provider/singlekey/store"
	"github.com/satconnect/go-sdk/txbuilder"
	"github.com/satconnect/go-sdk/types"
	log "github.com/sirupsen/logrus"
)

// messageMagic prefixes every signed message to bind signatures to this
// scheme and keep them unusable as transaction signatures.
const messageMagic = "\x18Bitcoin Signed Message:\n"

type walletProvider struct {
	mu          sync.RWMutex
	walletStore store.WalletStore
	net         types.Network
	privKey     *btcec.PrivateKey
	pubKey      *btcec.PublicKey
	connected   bool
}

// NewProvider returns a singlekey provider reading its key material from
// the given wallet store.
func NewProvider(walletStore store.WalletStore, net types.Network) (provider.Provider, error) {
	if walletStore == nil {
		return nil, fmt.Errorf("missing wallet store")
	}

	svc := &walletProvider{walletStore: walletStore, net: net}
	data, err := walletStore.GetWallet()
	if err != nil {
		return nil, err
	}
	if data != nil {
		svc.pubKey = data.PubKey
	}
	return svc, nil
}

func (p *walletProvider) Type() string {
	return provider.SingleKeyProvider
}

func (p *walletProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SignMessage:        true,
		SignPsbt:           true,
		TaprootKeySpend:    true,
		TaprootScriptSpend: true,
		SwitchNetwork:      true,
	}
}

func (p *walletProvider) Connect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pubKey == nil {
		return provider.ErrProviderNotInitialized
	}
	p.connected = true
	return nil
}

func (p *walletProvider) Disconnect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

func (p *walletProvider) Status(_ context.Context) (provider.Status, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return provider.Status{
		Initialized: p.pubKey != nil,
		Unlocked:    p.privKey != nil,
		Connected:   p.connected,
	}, nil
}

func (p *walletProvider) Network(_ context.Context) (types.Network, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.net, nil
}

func (p *walletProvider) SwitchNetwork(_ context.Context, net types.Network) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if net.Name == p.net.Name {
		return nil
	}
	p.net = net
	log.Debugf("singlekey: switched to network %s", net.Name)
	return nil
}

func (p *walletProvider) Addresses(ctx context.Context) ([]provider.Address, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.pubKey == nil {
		return nil, provider.ErrProviderNotInitialized
	}
	return p.deriveAddresses()
}

func (p *walletProvider) NewAddress(ctx context.Context, _ bool) (provider.Address, error) {
	// A single key has a fixed address set, hand out the taproot one.
	addrs, err := p.Addresses(ctx)
	if err != nil {
		return provider.Address{}, err
	}
	for _, addr := range addrs {
		if addr.Type == types.AddressP2TR {
			return addr, nil
		}
	}
	return addrs[0], nil
}

func (p *walletProvider) PublicKey(_ context.Context) (*btcec.PublicKey, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pubKey == nil {
		return nil, provider.ErrProviderNotInitialized
	}
	return p.pubKey, nil
}

func (p *walletProvider) SignMessage(_ context.Context, message []byte) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.privKey == nil {
		return "", provider.ErrProviderLocked
	}

	digest := messageDigest(message)
	sig, err := schnorr.Sign(p.privKey, digest)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

func (p *walletProvider) SignPsbt(
	_ context.Context, packet *psbt.Packet, opts provider.SignPsbtOptions,
) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.privKey == nil {
		return 0, provider.ErrProviderLocked
	}

	return txbuilder.SignInputs(
		packet, p.privKey, p.net.ChainParams(), opts.InputsToSign,
	)
}

func (p *walletProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.privKey = nil
	p.connected = false
}

// Create initializes the wallet with the given private key, or a fresh one
// when privateKey is empty. Returns the hex private key for backup.
func (p *walletProvider) Create(
	_ context.Context, password, privateKey string,
) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pubKey != nil {
		return "", fmt.Errorf("wallet already initialized")
	}
	if len(password) == 0 {
		return "", fmt.Errorf("missing password")
	}

	var privKey *btcec.PrivateKey
	if len(privateKey) > 0 {
		privKeyBytes, err := hex.DecodeString(privateKey)
		if err != nil {
			return "", fmt.Errorf("invalid private key: %w", err)
		}
		privKey, _ = btcec.PrivKeyFromBytes(privKeyBytes)
	} else {
		var err error
		privKey, err = btcec.NewPrivateKey()
		if err != nil {
			return "", err
		}
	}

	seed := hex.EncodeToString(privKey.Serialize())
	encrypted, err := utils.EncryptAES256(privKey.Serialize(), []byte(password))
	if err != nil {
		return "", err
	}

	data := store.WalletData{
		EncryptedPrvkey: encrypted,
		PasswordHash:    utils.HashPassword([]byte(password)),
		PubKey:          privKey.PubKey(),
	}
	if err := p.walletStore.AddWallet(data); err != nil {
		return "", err
	}

	p.pubKey = privKey.PubKey()
	return seed, nil
}

func (p *walletProvider) Unlock(_ context.Context, password string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.privKey != nil {
		return true, nil
	}

	data, err := p.walletStore.GetWallet()
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, provider.ErrProviderNotInitialized
	}

	if !bytes.Equal(data.PasswordHash, utils.HashPassword([]byte(password))) {
		return false, fmt.Errorf("invalid password")
	}

	privKeyBytes, err := utils.DecryptAES256(data.EncryptedPrvkey, []byte(password))
	if err != nil {
		return false, err
	}

	p.privKey, p.pubKey = btcec.PrivKeyFromBytes(privKeyBytes)
	return false, nil
}

func (p *walletProvider) Lock(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.privKey = nil
	return nil
}

func (p *walletProvider) IsLocked() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.privKey == nil
}

func (p *walletProvider) Dump(_ context.Context) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.privKey == nil {
		return "", provider.ErrProviderLocked
	}
	return hex.EncodeToString(p.privKey.Serialize()), nil
}

func (p *walletProvider) deriveAddresses() ([]provider.Address, error) {
	params := p.net.ChainParams()

	witnessAddr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(p.pubKey.SerializeCompressed()), params,
	)
	if err != nil {
		return nil, err
	}

	taprootKey := txscript.ComputeTaprootKeyNoScript(p.pubKey)
	taprootAddr, err := btcutil.NewAddressTaproot(
		schnorr.SerializePubKey(taprootKey), params,
	)
	if err != nil {
		return nil, err
	}

	return []provider.Address{
		{Address: witnessAddr.EncodeAddress(), Type: types.AddressP2WPKH},
		{Address: taprootAddr.EncodeAddress(), Type: types.AddressP2TR},
	}, nil
}

// messageDigest hashes a message with the magic prefix, double-sha256 as in
// the legacy signmessage scheme.
func messageDigest(message []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(messageMagic)
	_ = wire.WriteVarInt(&buf, 0, uint64(len(message)))
	buf.Write(message)

	first := sha256.Sum256(buf.Bytes())
	second := sha256.Sum256(first[:])
	return second[:]
}

// VerifyMessage checks a hex schnorr signature produced by SignMessage
// against the given public key.
func VerifyMessage(pubKey *btcec.PublicKey, message []byte, signature string) (bool, error) {
	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("invalid signature encoding: %w", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false, fmt.Errorf("invalid signature: %w", err)
	}
	return sig.Verify(messageDigest(message), pubKey), nil
}
