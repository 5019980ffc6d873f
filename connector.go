package satconnect

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/satconnect/go-sdk/bip21"
	"github.com/satconnect/go-sdk/explorer"
	"github.com/satconnect/go-sdk/internal/utils"
	"github.com/satconnect/go-sdk/provider"
	"github.com/satconnect/go-sdk/provider/remote"
	"github.com/satconnect/go-sdk/provider/singlekey"
	walletstore "github.com/satconnect/go-sdk/provider/singlekey/store"
	"github.com/satconnect/go-sdk/txbuilder"
	"github.com/satconnect/go-sdk/types"
	log "github.com/sirupsen/logrus"
)

const (
	defaultDust         = 546
	defaultFeeRateFloor = 1
	defaultPollInterval = 10 * time.Second

	connEventBuffer = 16
)

type connector struct {
	*types.Config

	store    types.Store
	provider provider.Provider
	explorer explorer.Explorer

	mu   sync.Mutex
	dbMu sync.Mutex

	connected  bool
	connEvents *utils.Broadcaster[types.ConnectionEvent]
	stopFeed   func()
}

// NewConnector returns an uninitialized connector bound to the given store.
// It fails with ErrAlreadyInitialized when the store already holds a
// configuration, in which case LoadConnector must be used.
func NewConnector(storeSvc types.Store, opts ...ClientOption) (WalletConnector, error) {
	if storeSvc == nil {
		return nil, fmt.Errorf("missing store")
	}

	data, err := storeSvc.ConfigStore().GetData(context.Background())
	if err != nil {
		return nil, err
	}
	if data != nil {
		return nil, ErrAlreadyInitialized
	}

	c := &connector{
		store:      storeSvc,
		connEvents: utils.NewBroadcaster[types.ConnectionEvent](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LoadConnector restores a connector from a previously initialized store.
func LoadConnector(storeSvc types.Store, opts ...ClientOption) (WalletConnector, error) {
	if storeSvc == nil {
		return nil, fmt.Errorf("missing store")
	}

	cfgData, err := storeSvc.ConfigStore().GetData(context.Background())
	if err != nil {
		return nil, err
	}
	if cfgData == nil {
		return nil, ErrNotInitialized
	}

	prvdr, err := getProvider(*cfgData, storeSvc.ConfigStore().GetDatadir())
	if err != nil {
		return nil, err
	}

	explorerSvc, err := getExplorer(*cfgData)
	if err != nil {
		return nil, err
	}

	c := &connector{
		Config:     cfgData,
		store:      storeSvc,
		provider:   prvdr,
		explorer:   explorerSvc,
		connEvents: utils.NewBroadcaster[types.ConnectionEvent](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LoadConnectorWithProvider restores a connector from an initialized store
// but drives the given provider instead of rebuilding one from the stored
// configuration. Meant for custom backends implementing provider.Provider.
func LoadConnectorWithProvider(
	storeSvc types.Store, prvdr provider.Provider, opts ...ClientOption,
) (WalletConnector, error) {
	if storeSvc == nil {
		return nil, fmt.Errorf("missing store")
	}
	if prvdr == nil {
		return nil, fmt.Errorf("missing provider")
	}

	cfgData, err := storeSvc.ConfigStore().GetData(context.Background())
	if err != nil {
		return nil, err
	}
	if cfgData == nil {
		return nil, ErrNotInitialized
	}

	explorerSvc, err := getExplorer(*cfgData)
	if err != nil {
		return nil, err
	}

	c := &connector{
		Config:     cfgData,
		store:      storeSvc,
		provider:   prvdr,
		explorer:   explorerSvc,
		connEvents: utils.NewBroadcaster[types.ConnectionEvent](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *connector) GetVersion() string {
	return Version
}

func (c *connector) GetConfigData(ctx context.Context) (*types.Config, error) {
	if c.Config == nil {
		return nil, ErrNotInitialized
	}
	cfg := *c.Config
	return &cfg, nil
}

func (c *connector) Init(ctx context.Context, args InitArgs) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Config != nil {
		return ErrAlreadyInitialized
	}
	if err := args.validate(); err != nil {
		return err
	}

	network := types.NetworkFromString(args.Network)
	explorerURL := args.ExplorerURL
	if len(explorerURL) == 0 {
		url, err := network.DefaultExplorerURL()
		if err != nil {
			return err
		}
		explorerURL = url
	}

	dust := args.Dust
	if dust == 0 {
		dust = defaultDust
	}
	feeRateFloor := args.FeeRateFloor
	if feeRateFloor == 0 {
		feeRateFloor = defaultFeeRateFloor
	}
	pollInterval := args.ExplorerPollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	cfgData := types.Config{
		ProviderType:         args.ProviderType,
		ProviderURL:          args.ProviderURL,
		Network:              network,
		ExplorerURL:          explorerURL,
		ExplorerPollInterval: pollInterval,
		WithTransactionFeed:  args.WithTransactionFeed,
		Dust:                 dust,
		FeeRateFloor:         feeRateFloor,
	}

	prvdr, err := getProvider(cfgData, c.store.ConfigStore().GetDatadir())
	if err != nil {
		return err
	}

	if args.ProviderType == provider.SingleKeyProvider {
		locker, ok := prvdr.(provider.Locker)
		if !ok {
			return fmt.Errorf("provider does not support local key creation")
		}
		if _, err := locker.Create(ctx, args.Password, args.PrivateKey); err != nil {
			return err
		}
	}

	explorerSvc := c.explorer
	if explorerSvc == nil {
		explorerSvc, err = getExplorer(cfgData)
		if err != nil {
			return err
		}
	}

	if err := c.store.ConfigStore().AddData(ctx, cfgData); err != nil {
		return err
	}

	c.Config = &cfgData
	c.provider = prvdr
	c.explorer = explorerSvc
	return nil
}

func (c *connector) IsLocked(ctx context.Context) bool {
	if c.provider == nil {
		return false
	}
	locker, ok := c.provider.(provider.Locker)
	if !ok {
		return false
	}
	return locker.IsLocked()
}

func (c *connector) Unlock(ctx context.Context, password string) error {
	if err := c.safeCheck(); err != nil {
		return err
	}
	locker, ok := c.provider.(provider.Locker)
	if !ok {
		return provider.ErrCapabilityNotSupported
	}
	_, err := locker.Unlock(ctx, password)
	return err
}

func (c *connector) Lock(ctx context.Context) error {
	if err := c.safeCheck(); err != nil {
		return err
	}
	locker, ok := c.provider.(provider.Locker)
	if !ok {
		return provider.ErrCapabilityNotSupported
	}
	return locker.Lock(ctx)
}

func (c *connector) Dump(ctx context.Context) (string, error) {
	if err := c.safeCheck(); err != nil {
		return "", err
	}
	locker, ok := c.provider.(provider.Locker)
	if !ok {
		return "", provider.ErrCapabilityNotSupported
	}
	return locker.Dump(ctx)
}

func (c *connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.safeCheck(); err != nil {
		return err
	}
	if c.connected {
		return ErrAlreadyConnected
	}

	if err := c.provider.Connect(ctx); err != nil {
		return err
	}

	providerNet, err := c.provider.Network(ctx)
	if err != nil {
		// nolint
		c.provider.Disconnect(ctx)
		return err
	}
	if providerNet.Name != c.Network.Name {
		// nolint
		c.provider.Disconnect(ctx)
		return fmt.Errorf(
			"%w: provider is on %s, expected %s",
			provider.ErrNetworkMismatch, providerNet.Name, c.Network.Name,
		)
	}

	c.explorer.Start()
	c.startFeed()
	c.connected = true

	c.connEvents.Publish(types.ConnectionEvent{
		Type:    types.ConnEstablished,
		Network: c.Network,
	})
	return nil
}

func (c *connector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}

	if c.stopFeed != nil {
		c.stopFeed()
		c.stopFeed = nil
	}
	c.explorer.Stop()
	if err := c.provider.Disconnect(ctx); err != nil {
		return err
	}
	c.connected = false

	c.connEvents.Publish(types.ConnectionEvent{
		Type:    types.ConnClosed,
		Network: c.Network,
	})
	return nil
}

func (c *connector) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *connector) GetConnectionEventChannel(
	ctx context.Context,
) <-chan types.ConnectionEvent {
	ch := c.connEvents.Subscribe(connEventBuffer)
	go func() {
		<-ctx.Done()
		c.connEvents.Unsubscribe(ch)
	}()
	return ch
}

func (c *connector) Receive(ctx context.Context) (string, error) {
	if err := c.safeCheck(); err != nil {
		return "", err
	}

	addrs, err := c.provider.Addresses(ctx)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("provider exposes no addresses")
	}
	return addrs[0].Address, nil
}

func (c *connector) NewAddress(ctx context.Context) (string, error) {
	if err := c.safeCheck(); err != nil {
		return "", err
	}

	addr, err := c.provider.NewAddress(ctx, false)
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}

func (c *connector) GetAddresses(ctx context.Context) ([]string, error) {
	if err := c.safeCheck(); err != nil {
		return nil, err
	}

	addrs, err := c.provider.Addresses(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		list = append(list, addr.Address)
	}
	return list, nil
}

func (c *connector) GetPublicKey(ctx context.Context) (string, error) {
	if err := c.safeCheck(); err != nil {
		return "", err
	}

	pubkey, err := c.provider.PublicKey(ctx)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(pubkey.SerializeCompressed()), nil
}

func (c *connector) Balance(ctx context.Context) (*Balance, error) {
	if err := c.safeCheck(); err != nil {
		return nil, err
	}

	if c.WithTransactionFeed {
		return c.getBalanceFromStore(ctx)
	}
	return c.getBalanceFromExplorer(ctx)
}

func (c *connector) ListUtxos(
	ctx context.Context,
) (spendable, spent []types.Utxo, err error) {
	if err := c.safeCheck(); err != nil {
		return nil, nil, err
	}

	if c.WithTransactionFeed {
		return c.store.UtxoStore().GetAllUtxos(ctx)
	}

	// without the feed the explorer only knows the unspent set
	spendable, err = c.getSpendableUtxos(ctx)
	return spendable, nil, err
}

func (c *connector) SendBitcoin(
	ctx context.Context, receivers []types.Receiver, opts ...Option,
) (string, error) {
	options := newDefaultSendOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return "", err
		}
	}

	if err := c.safeCheckConnected(); err != nil {
		return "", err
	}
	if !c.provider.Capabilities().SignPsbt {
		return "", provider.ErrCapabilityNotSupported
	}
	if len(receivers) == 0 {
		return "", fmt.Errorf("missing receivers")
	}

	params := c.Network.ChainParams()
	parsedReceivers, err := parseReceivers(receivers, params)
	if err != nil {
		return "", err
	}

	spendable, err := c.getSpendableUtxos(ctx)
	if err != nil {
		return "", err
	}

	feeRate := options.FeeRate
	if feeRate == 0 {
		feeRate, err = c.explorer.GetFeeRate()
		if err != nil {
			log.WithError(err).Warn("failed to fetch fee rate, using floor")
			feeRate = c.FeeRateFloor
		}
	}
	if feeRate < c.FeeRateFloor {
		feeRate = c.FeeRateFloor
	}

	changeAddress := options.ChangeAddress
	if len(changeAddress) == 0 {
		addr, err := c.provider.NewAddress(ctx, true)
		if err != nil {
			return "", err
		}
		changeAddress = addr.Address
	}

	packet, err := txbuilder.Create(parsedReceivers, params, txbuilder.CreateOptions{
		Rbf: !options.RbfDisabled,
	})
	if err != nil {
		return "", err
	}

	selected, fee, err := txbuilder.Fund(packet, spendable, params, txbuilder.FundOptions{
		FeeRate:          feeRate,
		ChangeAddress:    changeAddress,
		SpendUnconfirmed: options.SpendUnconfirmed,
		Dust:             c.Dust,
		Rbf:              !options.RbfDisabled,
	})
	if err != nil {
		return "", err
	}

	signedCount, err := c.provider.SignPsbt(ctx, packet, provider.SignPsbtOptions{})
	if err != nil {
		return "", c.observeSessionErr(err)
	}
	if signedCount == 0 {
		return "", fmt.Errorf("provider signed no inputs")
	}

	txHex, txid, err := txbuilder.Finalize(packet)
	if err != nil {
		return "", err
	}

	if _, err := c.explorer.Broadcast(txHex); err != nil {
		return "", err
	}

	if c.WithTransactionFeed {
		c.recordOutgoingTx(ctx, txid, txHex, parsedReceivers, selected, fee)
	}

	log.Debugf("broadcasted tx %s", txid)
	return txid, nil
}

func (c *connector) SignMessage(ctx context.Context, message string) (string, error) {
	if err := c.safeCheck(); err != nil {
		return "", err
	}
	if !c.provider.Capabilities().SignMessage {
		return "", provider.ErrCapabilityNotSupported
	}
	sig, err := c.provider.SignMessage(ctx, []byte(message))
	return sig, c.observeSessionErr(err)
}

func (c *connector) VerifyMessage(
	ctx context.Context, message, signature string,
) (bool, error) {
	if err := c.safeCheck(); err != nil {
		return false, err
	}

	pubkey, err := c.provider.PublicKey(ctx)
	if err != nil {
		return false, err
	}
	return singlekey.VerifyMessage(pubkey, []byte(message), signature)
}

func (c *connector) SignPsbt(
	ctx context.Context, tx string, opts ...Option,
) (string, error) {
	options := newDefaultSignOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return "", err
		}
	}

	if err := c.safeCheck(); err != nil {
		return "", err
	}
	if !c.provider.Capabilities().SignPsbt {
		return "", provider.ErrCapabilityNotSupported
	}

	packet, err := txbuilder.ParsePacket(tx)
	if err != nil {
		return "", err
	}

	signedCount, err := c.provider.SignPsbt(ctx, packet, provider.SignPsbtOptions{
		InputsToSign: options.InputsToSign,
	})
	if err != nil {
		return "", c.observeSessionErr(err)
	}
	if signedCount == 0 {
		return "", fmt.Errorf("provider signed no inputs")
	}

	return txbuilder.EncodePacket(packet)
}

func (c *connector) PushPsbt(ctx context.Context, tx string) (string, error) {
	if err := c.safeCheckConnected(); err != nil {
		return "", err
	}

	packet, err := txbuilder.ParsePacket(tx)
	if err != nil {
		return "", err
	}

	txHex, txid, err := txbuilder.Finalize(packet)
	if err != nil {
		return "", err
	}

	if _, err := c.explorer.Broadcast(txHex); err != nil {
		return "", err
	}
	return txid, nil
}

func (c *connector) SignAndPushPsbt(
	ctx context.Context, tx string, opts ...Option,
) (string, error) {
	signedTx, err := c.SignPsbt(ctx, tx, opts...)
	if err != nil {
		return "", err
	}
	return c.PushPsbt(ctx, signedTx)
}

// SwitchNetwork moves the whole connector to another chain: the provider is
// switched first, then the explorer is re-pointed, chain-scoped state is
// wiped from the store and the new configuration is persisted. The operation
// is serialized with every other lifecycle operation.
func (c *connector) SwitchNetwork(ctx context.Context, network types.Network) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.safeCheck(); err != nil {
		return err
	}
	if network.Name == c.Network.Name {
		return ErrSameNetwork
	}
	if !c.provider.Capabilities().SwitchNetwork {
		return provider.ErrCapabilityNotSupported
	}

	explorerURL, err := network.DefaultExplorerURL()
	if err != nil {
		return err
	}

	newCfg := *c.Config
	newCfg.Network = network
	newCfg.ExplorerURL = explorerURL

	newExplorer, err := getExplorer(newCfg)
	if err != nil {
		return err
	}

	wasConnected := c.connected
	if wasConnected {
		if c.stopFeed != nil {
			c.stopFeed()
			c.stopFeed = nil
		}
		c.explorer.Stop()
	}

	if err := c.provider.SwitchNetwork(ctx, network); err != nil {
		if wasConnected {
			c.explorer.Start()
			c.startFeed()
		}
		return err
	}

	// Persist the new config before touching chain-scoped state, so a
	// failed persist leaves a consistent, merely stale, store behind.
	if err := c.store.ConfigStore().AddData(ctx, newCfg); err != nil {
		// nolint
		c.provider.SwitchNetwork(ctx, c.Network)
		if wasConnected {
			c.explorer.Start()
			c.startFeed()
		}
		return err
	}

	// utxos and tx history belong to the old chain
	c.dbMu.Lock()
	if err := c.store.TransactionStore().Clean(ctx); err != nil {
		log.WithError(err).Warn("failed to clean transaction store")
	}
	if err := c.store.UtxoStore().Clean(ctx); err != nil {
		log.WithError(err).Warn("failed to clean utxo store")
	}
	c.dbMu.Unlock()

	c.Config = &newCfg
	c.explorer = newExplorer

	if wasConnected {
		c.explorer.Start()
		c.startFeed()
	}

	c.connEvents.Publish(types.ConnectionEvent{
		Type:    types.NetworkChanged,
		Network: network,
	})
	log.Debugf("switched network to %s", network.Name)
	return nil
}

func (c *connector) GetTransactionHistory(ctx context.Context) ([]types.Transaction, error) {
	if err := c.safeCheck(); err != nil {
		return nil, err
	}

	if c.WithTransactionFeed {
		txs, err := c.store.TransactionStore().GetAllTransactions(ctx)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(txs, func(i, j int) bool {
			return txs[i].CreatedAt.After(txs[j].CreatedAt)
		})
		return txs, nil
	}

	return c.getHistoryFromExplorer(ctx)
}

func (c *connector) GetTransactionEventChannel(
	ctx context.Context,
) <-chan types.TransactionEvent {
	return c.store.TransactionStore().GetEventChannel()
}

func (c *connector) GetUtxoEventChannel(ctx context.Context) <-chan types.UtxoEvent {
	return c.store.UtxoStore().GetEventChannel()
}

func (c *connector) Reset(ctx context.Context) {
	c.store.Clean(ctx)
}

func (c *connector) Stop() {
	c.mu.Lock()
	if c.connected {
		if c.stopFeed != nil {
			c.stopFeed()
			c.stopFeed = nil
		}
		c.explorer.Stop()
		// nolint
		c.provider.Disconnect(context.Background())
		c.connected = false
	}
	c.mu.Unlock()

	if c.provider != nil {
		c.provider.Close()
	}
	c.connEvents.Close()
	c.store.Close()
}

func (c *connector) safeCheck() error {
	if c.Config == nil || c.provider == nil {
		return ErrNotInitialized
	}
	return nil
}

// safeCheckConnected must not be called with c.mu held.
func (c *connector) safeCheckConnected() error {
	if err := c.safeCheck(); err != nil {
		return err
	}
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	return nil
}

// observeSessionErr reacts to a provider reporting its session gone mid
// operation: the connector tears down tracking and tells subscribers.
func (c *connector) observeSessionErr(err error) error {
	if err == nil || !errors.Is(err, provider.ErrSessionClosed) {
		return err
	}

	c.mu.Lock()
	wasConnected := c.connected
	if wasConnected {
		if c.stopFeed != nil {
			c.stopFeed()
			c.stopFeed = nil
		}
		c.explorer.Stop()
		c.connected = false
	}
	c.mu.Unlock()

	if wasConnected {
		log.Debug("provider session dropped, marking connector disconnected")
		c.connEvents.Publish(types.ConnectionEvent{
			Type:    types.ConnClosed,
			Network: c.Network,
		})
	}
	return err
}

// startFeed spins the onchain listener up. Callers must hold c.mu.
func (c *connector) startFeed() {
	if !c.WithTransactionFeed || c.stopFeed != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.stopFeed = cancel
	go c.listenForOnchainTxs(ctx)
}

func (c *connector) getBalanceFromStore(ctx context.Context) (*Balance, error) {
	spendable, _, err := c.store.UtxoStore().GetAllUtxos(ctx)
	if err != nil {
		return nil, err
	}

	balance := &Balance{}
	for _, utxo := range spendable {
		balance.Total += utxo.Amount
		if utxo.Locked {
			balance.Locked += utxo.Amount
			continue
		}
		if utxo.IsConfirmed() {
			balance.Confirmed += utxo.Amount
		} else {
			balance.Unconfirmed += utxo.Amount
		}
	}
	return balance, nil
}

func (c *connector) getBalanceFromExplorer(ctx context.Context) (*Balance, error) {
	addrs, err := c.provider.Addresses(ctx)
	if err != nil {
		return nil, err
	}

	balance := &Balance{}
	for _, addr := range addrs {
		utxos, err := c.explorer.GetUtxos(addr.Address)
		if err != nil {
			return nil, err
		}
		for _, utxo := range utxos {
			balance.Total += utxo.Amount
			if utxo.Status.Confirmed {
				balance.Confirmed += utxo.Amount
			} else {
				balance.Unconfirmed += utxo.Amount
			}
		}
	}
	return balance, nil
}

func (c *connector) getSpendableUtxos(ctx context.Context) ([]types.Utxo, error) {
	if c.WithTransactionFeed {
		spendable, _, err := c.store.UtxoStore().GetAllUtxos(ctx)
		return spendable, err
	}

	addrs, err := c.provider.Addresses(ctx)
	if err != nil {
		return nil, err
	}

	utxos := make([]types.Utxo, 0)
	for _, addr := range addrs {
		list, err := c.explorer.GetUtxos(addr.Address)
		if err != nil {
			return nil, err
		}
		for _, utxo := range list {
			utxos = append(utxos, utxo.ToTypeUtxo(addr.Address))
		}
	}
	return utxos, nil
}

// recordOutgoingTx locks the spent coins and stores the SENT record so the
// balance reflects the send before the explorer notifies the spend.
func (c *connector) recordOutgoingTx(
	ctx context.Context, txid, txHex string,
	receivers []types.Receiver, selected []types.Utxo, fee uint64,
) {
	amount := uint64(0)
	for _, receiver := range receivers {
		amount += receiver.Amount
	}

	keys := make([]types.Outpoint, 0, len(selected))
	for _, utxo := range selected {
		keys = append(keys, utxo.Outpoint)
	}

	c.dbMu.Lock()
	defer c.dbMu.Unlock()

	if _, err := c.store.UtxoStore().LockUtxos(ctx, keys, true); err != nil {
		log.WithError(err).Warn("failed to lock spent utxos")
	}
	if _, err := c.store.TransactionStore().AddTransactions(ctx, []types.Transaction{
		{
			Txid:      txid,
			Amount:    amount,
			Fee:       fee,
			Type:      types.TxSent,
			CreatedAt: time.Now(),
			Hex:       txHex,
		},
	}); err != nil {
		log.WithError(err).Warn("failed to record outgoing transaction")
	}
}

func (c *connector) getHistoryFromExplorer(ctx context.Context) ([]types.Transaction, error) {
	addrs, err := c.provider.Addresses(ctx)
	if err != nil {
		return nil, err
	}

	ownAddresses := make(map[string]struct{}, len(addrs))
	for _, addr := range addrs {
		ownAddresses[addr.Address] = struct{}{}
	}

	history := make(map[string]types.Transaction)
	for _, addr := range addrs {
		txs, err := c.explorer.GetTxs(addr.Address)
		if err != nil {
			return nil, err
		}
		for _, tx := range txs {
			if _, ok := history[tx.Txid]; ok {
				continue
			}
			history[tx.Txid] = txFromExplorer(tx, ownAddresses)
		}
	}

	list := make([]types.Transaction, 0, len(history))
	for _, tx := range history {
		list = append(list, tx)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// txFromExplorer classifies an explorer transaction against the wallet's own
// addresses. The fee is known only when every input is ours.
func txFromExplorer(tx explorer.Tx, ownAddresses map[string]struct{}) types.Transaction {
	totalIn, ownIn := uint64(0), uint64(0)
	allInputsOwn := true
	for _, in := range tx.Vin {
		totalIn += in.Output.Amount
		if _, ok := ownAddresses[in.Output.Address]; ok {
			ownIn += in.Output.Amount
		} else {
			allInputsOwn = false
		}
	}

	totalOut, ownOut := uint64(0), uint64(0)
	for _, out := range tx.Vout {
		totalOut += out.Amount
		if _, ok := ownAddresses[out.Address]; ok {
			ownOut += out.Amount
		}
	}

	txType := types.TxReceived
	amount := ownOut
	fee := uint64(0)
	if ownIn > 0 {
		if allInputsOwn {
			fee = totalIn - totalOut
		}
		// What left the wallet, net of the fee. fee <= ownIn always holds:
		// it is non-zero only when every input is ours.
		sentNet := ownIn - fee
		switch {
		case allInputsOwn && ownOut == totalOut:
			txType = types.TxSelf
			amount = ownOut
		case ownOut >= sentNet:
			// Mixed tx crediting the wallet more than it contributed.
			txType = types.TxReceived
			amount = ownOut - sentNet
		default:
			txType = types.TxSent
			amount = sentNet - ownOut
		}
	}

	var createdAt time.Time
	if tx.Status.Confirmed {
		createdAt = time.Unix(tx.Status.BlockTime, 0)
	}

	return types.Transaction{
		Txid:      tx.Txid,
		Amount:    amount,
		Fee:       fee,
		Type:      txType,
		CreatedAt: createdAt,
	}
}

func parseReceivers(
	receivers []types.Receiver, params *chaincfg.Params,
) ([]types.Receiver, error) {
	parsed := make([]types.Receiver, 0, len(receivers))
	for _, receiver := range receivers {
		if !bip21.IsURI(receiver.To) {
			parsed = append(parsed, receiver)
			continue
		}

		request, err := bip21.Parse(receiver.To, params)
		if err != nil {
			return nil, err
		}
		amount := receiver.Amount
		if request.Amount > 0 {
			if amount > 0 && amount != request.Amount {
				return nil, fmt.Errorf(
					"amount mismatch for %s: uri says %d, caller says %d",
					request.Address, request.Amount, amount,
				)
			}
			amount = request.Amount
		}
		if amount == 0 {
			return nil, fmt.Errorf("missing amount for receiver %s", request.Address)
		}
		parsed = append(parsed, types.Receiver{To: request.Address, Amount: amount})
	}
	return parsed, nil
}

func getProvider(cfgData types.Config, datadir string) (provider.Provider, error) {
	switch cfgData.ProviderType {
	case provider.SingleKeyProvider:
		var walletStore walletstore.WalletStore
		if len(datadir) > 0 {
			store, err := walletstore.NewFileWalletStore(datadir)
			if err != nil {
				return nil, err
			}
			walletStore = store
		} else {
			walletStore = walletstore.NewInMemoryWalletStore()
		}
		return singlekey.NewProvider(walletStore, cfgData.Network)
	case provider.RemoteProvider:
		return remote.NewProvider(cfgData.ProviderURL)
	default:
		return nil, fmt.Errorf("unsupported provider type %s", cfgData.ProviderType)
	}
}

func getExplorer(cfgData types.Config) (explorer.Explorer, error) {
	pollInterval := cfgData.ExplorerPollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return explorer.NewService(
		cfgData.ExplorerURL, cfgData.Network,
		explorer.WithTracker(cfgData.WithTransactionFeed),
		explorer.WithPollInterval(pollInterval),
	)
}

func (a InitArgs) validate() error {
	switch a.ProviderType {
	case provider.SingleKeyProvider:
		if len(a.Password) == 0 {
			return fmt.Errorf("missing password")
		}
	case provider.RemoteProvider:
		if len(a.ProviderURL) == 0 {
			return fmt.Errorf("missing provider url")
		}
	default:
		return fmt.Errorf("unsupported provider type %s", a.ProviderType)
	}

	if len(a.Network) == 0 {
		return fmt.Errorf("missing network")
	}
	switch a.Network {
	case types.Bitcoin.Name, types.BitcoinTestNet.Name,
		types.BitcoinSigNet.Name, types.BitcoinRegTest.Name:
	default:
		return fmt.Errorf("unsupported network %s", a.Network)
	}
	return nil
}
