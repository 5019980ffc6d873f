package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/satconnect/go-sdk/types"
	"golang.org/x/crypto/pbkdf2"
)

type SupportedType[V any] map[string]V

func (t SupportedType[V]) Supports(name string) bool {
	_, ok := t[name]
	return ok
}

func (t SupportedType[V]) String() string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	str := ""
	for _, name := range names {
		if len(str) > 0 {
			str += " | "
		}
		str += name
	}
	return str
}

// CoinSelect picks spendable utxos to cover the target amount, largest
// first with oldest-confirmation tie-break. Locked utxos are never
// selected; unconfirmed ones only when allowed.
func CoinSelect(
	utxos []types.Utxo, amount, dust uint64, spendUnconfirmed bool,
) (selected []types.Utxo, change uint64, err error) {
	candidates := make([]types.Utxo, 0, len(utxos))
	for _, utxo := range utxos {
		if utxo.Spent || utxo.Locked {
			continue
		}
		if !spendUnconfirmed && !utxo.IsConfirmed() {
			continue
		}
		candidates = append(candidates, utxo)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Amount != candidates[j].Amount {
			return candidates[i].Amount > candidates[j].Amount
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	selectedAmount := uint64(0)
	for _, utxo := range candidates {
		if selectedAmount >= amount {
			break
		}
		selected = append(selected, utxo)
		selectedAmount += utxo.Amount
	}

	if selectedAmount < amount {
		return nil, 0, fmt.Errorf(
			"not enough funds to cover amount %d, available %d", amount, selectedAmount,
		)
	}

	change = selectedAmount - amount
	if change > 0 && change < dust {
		// sub-dust change is left to fees
		change = 0
	}

	return selected, change, nil
}

func ParseBitcoinAddress(addr string, net *chaincfg.Params) (bool, []byte, error) {
	btcAddr, err := btcutil.DecodeAddress(addr, net)
	if err != nil {
		return false, nil, nil
	}

	script, err := txscript.PayToAddrScript(btcAddr)
	if err != nil {
		return false, nil, err
	}
	return true, script, nil
}

func HashPassword(password []byte) []byte {
	hash := sha256.Sum256(password)
	return hash[:]
}

func EncryptAES256(privateKey, password []byte) ([]byte, error) {
	if len(privateKey) == 0 {
		return nil, fmt.Errorf("missing plaintext private key")
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("missing encryption password")
	}

	key, salt, err := deriveKey(password, nil)
	if err != nil {
		return nil, err
	}

	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, privateKey, nil)
	ciphertext = append(ciphertext, salt...)

	return ciphertext, nil
}

func DecryptAES256(encrypted, password []byte) ([]byte, error) {
	if len(encrypted) == 0 {
		return nil, fmt.Errorf("missing encrypted private key")
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("missing decryption password")
	}

	salt := encrypted[len(encrypted)-32:]
	data := encrypted[:len(encrypted)-32]

	key, _, err := deriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return nil, err
	}
	nonce, text := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	// #nosec G407
	plaintext, err := gcm.Open(nil, nonce, text, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid password")
	}
	return plaintext, nil
}

var lock = &sync.Mutex{}

// deriveKey derives a 32 byte array key from a custom passphrase
func deriveKey(password, salt []byte) ([]byte, []byte, error) {
	lock.Lock()
	defer lock.Unlock()

	if salt == nil {
		salt = make([]byte, 32)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, err
		}
	}
	iterations := 10000
	keySize := 32
	key := pbkdf2.Key(password, salt, iterations, keySize, sha256.New)
	return key, salt, nil
}

func GroupBy[T any](items []T, keyFn func(T) string) map[string][]T {
	result := make(map[string][]T)

	for _, item := range items {
		key := keyFn(item)
		result[key] = append(result[key], item)
	}

	return result
}
