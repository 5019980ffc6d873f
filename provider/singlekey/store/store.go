package store

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
)

type WalletData struct {
	EncryptedPrvkey []byte
	PasswordHash    []byte
	PubKey          *btcec.PublicKey
}

type WalletStore interface {
	AddWallet(data WalletData) error
	GetWallet() (*WalletData, error)
}

type inMemoryStore struct {
	mu   sync.RWMutex
	data *WalletData
}

func NewInMemoryWalletStore() WalletStore {
	return &inMemoryStore{}
}

func (s *inMemoryStore) AddWallet(data WalletData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = &data
	return nil
}

func (s *inMemoryStore) GetWallet() (*WalletData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, nil
	}
	data := *s.data
	return &data, nil
}

const walletFilename = "wallet.json"

type walletFileData struct {
	EncryptedPrvkey string `json:"encrypted_private_key"`
	PasswordHash    string `json:"password_hash"`
	PubKey          string `json:"pubkey"`
}

type fileStore struct {
	mu       sync.Mutex
	filePath string
}

// NewFileWalletStore persists the encrypted key material as a JSON file
// under the given datadir.
func NewFileWalletStore(datadir string) (WalletStore, error) {
	if err := os.MkdirAll(datadir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %w", err)
	}
	return &fileStore{filePath: filepath.Join(datadir, walletFilename)}, nil
}

func (s *fileStore) AddWallet(data WalletData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, err := json.Marshal(walletFileData{
		EncryptedPrvkey: hex.EncodeToString(data.EncryptedPrvkey),
		PasswordHash:    hex.EncodeToString(data.PasswordHash),
		PubKey:          hex.EncodeToString(data.PubKey.SerializeCompressed()),
	})
	if err != nil {
		return err
	}

	// Write then rename so a crash can't leave a torn wallet file.
	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, buf, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.filePath)
}

func (s *fileStore) GetWallet() (*WalletData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	fileData := walletFileData{}
	if err := json.Unmarshal(buf, &fileData); err != nil {
		return nil, fmt.Errorf("corrupted wallet file: %w", err)
	}

	encryptedPrvkey, err := hex.DecodeString(fileData.EncryptedPrvkey)
	if err != nil {
		return nil, fmt.Errorf("corrupted wallet file: %w", err)
	}
	passwordHash, err := hex.DecodeString(fileData.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("corrupted wallet file: %w", err)
	}
	pubkeyBytes, err := hex.DecodeString(fileData.PubKey)
	if err != nil {
		return nil, fmt.Errorf("corrupted wallet file: %w", err)
	}
	pubkey, err := btcec.ParsePubKey(pubkeyBytes)
	if err != nil {
		return nil, fmt.Errorf("corrupted wallet file: %w", err)
	}

	return &WalletData{
		EncryptedPrvkey: encryptedPrvkey,
		PasswordHash:    passwordHash,
		PubKey:          pubkey,
	}, nil
}
