package satconnect_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	satconnect "github.com/satconnect/go-sdk"
	"github.com/satconnect/go-sdk/provider"
	"github.com/satconnect/go-sdk/store"
	"github.com/satconnect/go-sdk/types"
	"github.com/stretchr/testify/require"
)

const testPassword = "password"

func newTestStore(t *testing.T) types.Store {
	t.Helper()
	storeSvc, err := store.NewStore(store.Config{
		ConfigStoreType:  types.InMemoryStore,
		AppDataStoreType: types.InMemoryStore,
	})
	require.NoError(t, err)
	return storeSvc
}

func newTestConnector(t *testing.T) satconnect.WalletConnector {
	t.Helper()
	connector, err := satconnect.NewConnector(newTestStore(t))
	require.NoError(t, err)
	require.NotNil(t, connector)

	err = connector.Init(context.Background(), satconnect.InitArgs{
		ProviderType: provider.SingleKeyProvider,
		Network:      types.BitcoinRegTest.Name,
		Password:     testPassword,
	})
	require.NoError(t, err)
	return connector
}

func TestNewConnector(t *testing.T) {
	ctx := context.Background()
	storeSvc := newTestStore(t)

	_, err := satconnect.LoadConnector(storeSvc)
	require.ErrorIs(t, err, satconnect.ErrNotInitialized)

	connector, err := satconnect.NewConnector(storeSvc)
	require.NoError(t, err)

	err = connector.Init(ctx, satconnect.InitArgs{
		ProviderType: provider.SingleKeyProvider,
		Network:      types.BitcoinRegTest.Name,
		Password:     testPassword,
	})
	require.NoError(t, err)

	_, err = satconnect.NewConnector(storeSvc)
	require.ErrorIs(t, err, satconnect.ErrAlreadyInitialized)

	loaded, err := satconnect.LoadConnector(storeSvc)
	require.NoError(t, err)

	cfgData, err := loaded.GetConfigData(ctx)
	require.NoError(t, err)
	require.Equal(t, types.BitcoinRegTest.Name, cfgData.Network.Name)
	require.Equal(t, provider.SingleKeyProvider, cfgData.ProviderType)
	require.NotEmpty(t, cfgData.ExplorerURL)
	require.NotZero(t, cfgData.Dust)
}

func TestInitValidation(t *testing.T) {
	tests := []struct {
		name string
		args satconnect.InitArgs
	}{
		{
			name: "unsupported provider type",
			args: satconnect.InitArgs{
				ProviderType: "unknown",
				Network:      types.BitcoinRegTest.Name,
				Password:     testPassword,
			},
		},
		{
			name: "missing password",
			args: satconnect.InitArgs{
				ProviderType: provider.SingleKeyProvider,
				Network:      types.BitcoinRegTest.Name,
			},
		},
		{
			name: "missing provider url",
			args: satconnect.InitArgs{
				ProviderType: provider.RemoteProvider,
				Network:      types.BitcoinRegTest.Name,
			},
		},
		{
			name: "missing network",
			args: satconnect.InitArgs{
				ProviderType: provider.SingleKeyProvider,
				Password:     testPassword,
			},
		},
		{
			name: "unsupported network",
			args: satconnect.InitArgs{
				ProviderType: provider.SingleKeyProvider,
				Network:      "litecoin",
				Password:     testPassword,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connector, err := satconnect.NewConnector(newTestStore(t))
			require.NoError(t, err)

			err = connector.Init(context.Background(), tt.args)
			require.Error(t, err)
		})
	}
}

func TestLockUnlock(t *testing.T) {
	ctx := context.Background()
	connector := newTestConnector(t)

	// init leaves the key locked
	require.True(t, connector.IsLocked(ctx))

	err := connector.Unlock(ctx, "wrong password")
	require.Error(t, err)

	err = connector.Unlock(ctx, testPassword)
	require.NoError(t, err)
	require.False(t, connector.IsLocked(ctx))

	seed, err := connector.Dump(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, seed)

	err = connector.Lock(ctx)
	require.NoError(t, err)
	require.True(t, connector.IsLocked(ctx))
}

func TestAddressesAndPubkey(t *testing.T) {
	ctx := context.Background()
	connector := newTestConnector(t)
	require.NoError(t, connector.Unlock(ctx, testPassword))

	pubkey, err := connector.GetPublicKey(ctx)
	require.NoError(t, err)
	require.Len(t, pubkey, 66)

	addr, err := connector.Receive(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, addr)

	addrs, err := connector.GetAddresses(ctx)
	require.NoError(t, err)
	require.Contains(t, addrs, addr)

	newAddr, err := connector.NewAddress(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, newAddr)
}

func TestSignAndVerifyMessage(t *testing.T) {
	ctx := context.Background()
	connector := newTestConnector(t)
	require.NoError(t, connector.Unlock(ctx, testPassword))

	message := "hello world"
	sig, err := connector.SignMessage(ctx, message)
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	valid, err := connector.VerifyMessage(ctx, message, sig)
	require.NoError(t, err)
	require.True(t, valid)

	valid, err = connector.VerifyMessage(ctx, "another message", sig)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestSwitchNetwork(t *testing.T) {
	ctx := context.Background()
	connector := newTestConnector(t)
	require.NoError(t, connector.Unlock(ctx, testPassword))

	err := connector.SwitchNetwork(ctx, types.BitcoinRegTest)
	require.ErrorIs(t, err, satconnect.ErrSameNetwork)

	eventCh := connector.GetConnectionEventChannel(ctx)

	err = connector.SwitchNetwork(ctx, types.BitcoinSigNet)
	require.NoError(t, err)

	cfgData, err := connector.GetConfigData(ctx)
	require.NoError(t, err)
	require.Equal(t, types.BitcoinSigNet.Name, cfgData.Network.Name)
	require.Contains(t, cfgData.ExplorerURL, "signet")

	select {
	case event := <-eventCh:
		require.Equal(t, types.NetworkChanged, event.Type)
		require.Equal(t, types.BitcoinSigNet.Name, event.Network.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for network changed event")
	}

	// addresses must be re-derived for the new chain
	addr, err := connector.Receive(ctx)
	require.NoError(t, err)
	require.Contains(t, addr, types.BitcoinSigNet.Addr)
}

func TestSendRequiresConnection(t *testing.T) {
	ctx := context.Background()
	connector := newTestConnector(t)
	require.NoError(t, connector.Unlock(ctx, testPassword))

	_, err := connector.SendBitcoin(ctx, []types.Receiver{
		{To: "bcrt1qw508d6qejxtdg4y5r3zarvary0c5xw7kygt080", Amount: 1000},
	})
	require.ErrorIs(t, err, satconnect.ErrNotConnected)
}

func TestDisconnectWithoutConnect(t *testing.T) {
	connector := newTestConnector(t)
	err := connector.Disconnect(context.Background())
	require.ErrorIs(t, err, satconnect.ErrNotConnected)
}

// failingConfigStore wraps a real config store and fails writes on demand.
type failingConfigStore struct {
	types.ConfigStore
	failWrites bool
}

func (s *failingConfigStore) AddData(ctx context.Context, data types.Config) error {
	if s.failWrites {
		return fmt.Errorf("config write failed")
	}
	return s.ConfigStore.AddData(ctx, data)
}

type storeWithFailingConfig struct {
	types.Store
	cfg *failingConfigStore
}

func (s *storeWithFailingConfig) ConfigStore() types.ConfigStore { return s.cfg }

func TestSwitchNetworkPersistFailure(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	cfgStore := &failingConfigStore{ConfigStore: base.ConfigStore()}
	storeSvc := &storeWithFailingConfig{Store: base, cfg: cfgStore}

	connector, err := satconnect.NewConnector(storeSvc)
	require.NoError(t, err)
	err = connector.Init(ctx, satconnect.InitArgs{
		ProviderType: provider.SingleKeyProvider,
		Network:      types.BitcoinRegTest.Name,
		Password:     testPassword,
	})
	require.NoError(t, err)

	// Seed chain-scoped state that must survive a failed switch.
	_, err = base.TransactionStore().AddTransactions(ctx, []types.Transaction{
		{Txid: "aa", Amount: 1000, Type: types.TxReceived, CreatedAt: time.Now()},
	})
	require.NoError(t, err)

	cfgStore.failWrites = true
	err = connector.SwitchNetwork(ctx, types.BitcoinSigNet)
	require.Error(t, err)

	// Old chain data is intact and the stored config still names the old
	// network.
	txs, err := base.TransactionStore().GetAllTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	data, err := base.ConfigStore().GetData(ctx)
	require.NoError(t, err)
	require.Equal(t, types.BitcoinRegTest.Name, data.Network.Name)

	// The provider rolled back to the old network too.
	addr, err := connector.Receive(ctx)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(addr, "bcrt1"))
}

// watchOnlyProvider declares no capabilities at all.
type watchOnlyProvider struct{}

func (p *watchOnlyProvider) Type() string                     { return provider.RemoteProvider }
func (p *watchOnlyProvider) Connect(context.Context) error    { return nil }
func (p *watchOnlyProvider) Disconnect(context.Context) error { return nil }
func (p *watchOnlyProvider) Status(context.Context) (provider.Status, error) {
	return provider.Status{Initialized: true, Unlocked: true, Connected: true}, nil
}
func (p *watchOnlyProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{}
}
func (p *watchOnlyProvider) Network(context.Context) (types.Network, error) {
	return types.BitcoinRegTest, nil
}
func (p *watchOnlyProvider) SwitchNetwork(context.Context, types.Network) error {
	return provider.ErrCapabilityNotSupported
}
func (p *watchOnlyProvider) Addresses(context.Context) ([]provider.Address, error) {
	return nil, nil
}
func (p *watchOnlyProvider) NewAddress(context.Context, bool) (provider.Address, error) {
	return provider.Address{}, provider.ErrCapabilityNotSupported
}
func (p *watchOnlyProvider) PublicKey(context.Context) (*btcec.PublicKey, error) {
	return nil, provider.ErrCapabilityNotSupported
}
func (p *watchOnlyProvider) SignMessage(context.Context, []byte) (string, error) {
	return "", provider.ErrCapabilityNotSupported
}
func (p *watchOnlyProvider) SignPsbt(
	context.Context, *psbt.Packet, provider.SignPsbtOptions,
) (int, error) {
	return 0, provider.ErrCapabilityNotSupported
}
func (p *watchOnlyProvider) Close() {}

func TestCapabilityGating(t *testing.T) {
	ctx := context.Background()
	storeSvc := newTestStore(t)

	connector, err := satconnect.NewConnector(storeSvc)
	require.NoError(t, err)
	err = connector.Init(ctx, satconnect.InitArgs{
		ProviderType: provider.SingleKeyProvider,
		Network:      types.BitcoinRegTest.Name,
		Password:     testPassword,
	})
	require.NoError(t, err)

	watchOnly, err := satconnect.LoadConnectorWithProvider(
		storeSvc, &watchOnlyProvider{},
	)
	require.NoError(t, err)
	require.NoError(t, watchOnly.Connect(ctx))

	_, err = watchOnly.SendBitcoin(ctx, []types.Receiver{
		{To: "bcrt1qw508d6qejxtdg4y5r3zarvary0c5xw7kygt080", Amount: 1000},
	})
	require.ErrorIs(t, err, provider.ErrCapabilityNotSupported)

	_, err = watchOnly.SignMessage(ctx, "message")
	require.ErrorIs(t, err, provider.ErrCapabilityNotSupported)

	_, err = watchOnly.SignPsbt(ctx, "")
	require.ErrorIs(t, err, provider.ErrCapabilityNotSupported)
}

func TestConnectionStateConcurrency(t *testing.T) {
	ctx := context.Background()
	connector := newTestConnector(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				connector.IsConnected()
				// An empty psbt fails to parse, the call only exercises
				// the connection check.
				// nolint
				connector.PushPsbt(ctx, "")
			}
		}()
	}

	for i := 0; i < 20; i++ {
		// nolint
		connector.Connect(ctx)
		// nolint
		connector.Disconnect(ctx)
	}
	wg.Wait()

	require.False(t, connector.IsConnected())
}
