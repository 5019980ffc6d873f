package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	satconnect "github.com/satconnect/go-sdk"
	"github.com/satconnect/go-sdk/store"
	"github.com/satconnect/go-sdk/types"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

const (
	DatadirEnvVar = "SATCONNECT_DATADIR"
)

var (
	Version   string
	connector satconnect.WalletConnector
)

func main() {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "satconnect CLI"
	app.Usage = "bitcoin wallet connector command line interface"
	app.Commands = append(
		app.Commands,
		&initCommand,
		&configCommand,
		&connectCommand,
		&addressCommand,
		&balanceCommand,
		&sendCommand,
		&signMessageCommand,
		&verifyMessageCommand,
		&signPsbtCommand,
		&pushPsbtCommand,
		&switchNetworkCommand,
		&historyCommand,
		&dumpCommand,
		&versionCommand,
	)
	app.Flags = []cli.Flag{datadirFlag, verboseFlag}
	app.Before = func(ctx *cli.Context) error {
		sdk, err := getConnector(ctx)
		if err != nil {
			return fmt.Errorf("error initializing wallet connector: %v", err)
		}
		connector = sdk

		return nil
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

var (
	datadirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "Specify the data directory",
		Required: false,
		Value:    btcutil.AppDataDir("satconnect-cli", false),
		EnvVars:  []string{DatadirEnvVar},
	}
	explorerFlag = &cli.StringFlag{
		Name:  "explorer",
		Usage: "the url of the explorer to use",
	}
	passwordFlag = &cli.StringFlag{
		Name:  "password",
		Usage: "password to unlock the wallet",
	}
	privateKeyFlag = &cli.StringFlag{
		Name:  "prvkey",
		Usage: "optional private key to restore",
	}
	providerFlag = &cli.StringFlag{
		Name:  "provider",
		Usage: "wallet provider type (singlekey or remote)",
		Value: "singlekey",
	}
	providerUrlFlag = &cli.StringFlag{
		Name:  "provider-url",
		Usage: "the url of the remote wallet provider to connect to",
	}
	networkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "bitcoin network (bitcoin, testnet, signet, regtest)",
		Value: types.Bitcoin.Name,
	}
	feedFlag = &cli.BoolFlag{
		Name:  "with-feed",
		Usage: "track wallet addresses and maintain a local transaction feed",
	}
	receiversFlag = &cli.StringFlag{
		Name:  "receivers",
		Usage: "JSON encoded receivers of the send transaction",
	}
	toFlag = &cli.StringFlag{
		Name:  "to",
		Usage: "recipient address or bitcoin: URI",
	}
	amountFlag = &cli.Uint64Flag{
		Name:  "amount",
		Usage: "amount to send in sats",
	}
	feeRateFlag = &cli.Float64Flag{
		Name:  "fee-rate",
		Usage: "fee rate in sat/vB, fetched from the explorer when omitted",
	}
	messageFlag = &cli.StringFlag{
		Name:  "message",
		Usage: "message to sign or verify",
	}
	signatureFlag = &cli.StringFlag{
		Name:  "signature",
		Usage: "signature to verify",
	}
	psbtFlag = &cli.StringFlag{
		Name:  "psbt",
		Usage: "base64 encoded PSBT",
	}
	newFlag = &cli.BoolFlag{
		Name:  "new",
		Usage: "derive a fresh address",
	}
	pushFlag = &cli.BoolFlag{
		Name:  "push",
		Usage: "broadcast the transaction after signing",
	}
	verboseFlag = &cli.BoolFlag{
		Name:        "verbose",
		Usage:       "enable debug logs",
		Value:       false,
		DefaultText: "false",
	}
)

var (
	initCommand = cli.Command{
		Name:  "init",
		Usage: "Initialize the wallet connector with an encryption password",
		Action: func(ctx *cli.Context) error {
			return initConnector(ctx)
		},
		Flags: []cli.Flag{
			passwordFlag, privateKeyFlag, providerFlag, providerUrlFlag,
			networkFlag, explorerFlag, feedFlag,
		},
	}
	configCommand = cli.Command{
		Name:  "config",
		Usage: "Shows the wallet connector configuration",
		Action: func(ctx *cli.Context) error {
			return config(ctx)
		},
	}
	connectCommand = cli.Command{
		Name:  "connect",
		Usage: "Connect to the wallet provider and stream events until interrupted",
		Action: func(ctx *cli.Context) error {
			return connect(ctx)
		},
		Flags: []cli.Flag{passwordFlag},
	}
	addressCommand = cli.Command{
		Name:  "address",
		Usage: "Shows the wallet receiving addresses",
		Action: func(ctx *cli.Context) error {
			return address(ctx)
		},
		Flags: []cli.Flag{passwordFlag, newFlag},
	}
	balanceCommand = cli.Command{
		Name:  "balance",
		Usage: "Shows the wallet balance",
		Action: func(ctx *cli.Context) error {
			return balance(ctx)
		},
		Flags: []cli.Flag{passwordFlag},
	}
	sendCommand = cli.Command{
		Name:  "send",
		Usage: "Send funds onchain",
		Action: func(ctx *cli.Context) error {
			return send(ctx)
		},
		Flags: []cli.Flag{receiversFlag, toFlag, amountFlag, feeRateFlag, passwordFlag},
	}
	signMessageCommand = cli.Command{
		Name:  "sign-message",
		Usage: "Sign a message with the wallet key",
		Action: func(ctx *cli.Context) error {
			return signMessage(ctx)
		},
		Flags: []cli.Flag{messageFlag, passwordFlag},
	}
	verifyMessageCommand = cli.Command{
		Name:  "verify-message",
		Usage: "Verify a message signature against the wallet key",
		Action: func(ctx *cli.Context) error {
			return verifyMessage(ctx)
		},
		Flags: []cli.Flag{messageFlag, signatureFlag, passwordFlag},
	}
	signPsbtCommand = cli.Command{
		Name:  "sign-psbt",
		Usage: "Sign a base64 PSBT with the wallet key",
		Action: func(ctx *cli.Context) error {
			return signPsbt(ctx)
		},
		Flags: []cli.Flag{psbtFlag, pushFlag, passwordFlag},
	}
	pushPsbtCommand = cli.Command{
		Name:  "push-psbt",
		Usage: "Finalize and broadcast a base64 PSBT",
		Action: func(ctx *cli.Context) error {
			return pushPsbt(ctx)
		},
	}
	switchNetworkCommand = cli.Command{
		Name:  "switch-network",
		Usage: "Move the wallet connector to another bitcoin network",
		Action: func(ctx *cli.Context) error {
			return switchNetwork(ctx)
		},
		Flags: []cli.Flag{networkFlag, passwordFlag},
	}
	historyCommand = cli.Command{
		Name:  "history",
		Usage: "Shows the wallet transaction history",
		Action: func(ctx *cli.Context) error {
			return history(ctx)
		},
		Flags: []cli.Flag{passwordFlag},
	}
	dumpCommand = cli.Command{
		Name:  "dump-privkey",
		Usage: "Dumps the wallet private key",
		Action: func(ctx *cli.Context) error {
			return dumpPrivKey(ctx)
		},
		Flags: []cli.Flag{passwordFlag},
	}
	versionCommand = cli.Command{
		Name:  "version",
		Usage: "Display version information",
		Action: func(ctx *cli.Context) error {
			fmt.Printf("satconnect CLI version: %s\n", Version)
			return nil
		},
	}
)

func initConnector(ctx *cli.Context) error {
	password, err := readPassword(ctx)
	if err != nil {
		return err
	}

	return connector.Init(ctx.Context, satconnect.InitArgs{
		ProviderType:        ctx.String(providerFlag.Name),
		ProviderURL:         ctx.String(providerUrlFlag.Name),
		Network:             ctx.String(networkFlag.Name),
		ExplorerURL:         ctx.String(explorerFlag.Name),
		Password:            string(password),
		PrivateKey:          ctx.String(privateKeyFlag.Name),
		WithTransactionFeed: ctx.Bool(feedFlag.Name),
	})
}

func config(ctx *cli.Context) error {
	cfgData, err := connector.GetConfigData(ctx.Context)
	if err != nil {
		return err
	}

	cfg := map[string]interface{}{
		"provider_type":          cfgData.ProviderType,
		"provider_url":           cfgData.ProviderURL,
		"network":                cfgData.Network.Name,
		"explorer_url":           cfgData.ExplorerURL,
		"explorer_poll_interval": cfgData.ExplorerPollInterval.String(),
		"with_transaction_feed":  cfgData.WithTransactionFeed,
		"dust":                   cfgData.Dust,
		"fee_rate_floor":         cfgData.FeeRateFloor,
	}

	return printJSON(cfg)
}

func connect(ctx *cli.Context) error {
	if err := unlock(ctx); err != nil {
		return err
	}
	if err := connector.Connect(ctx.Context); err != nil {
		return err
	}
	defer func() {
		// nolint
		connector.Disconnect(context.Background())
	}()

	fmt.Println("connected, streaming events... press ctrl+c to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	connEvents := connector.GetConnectionEventChannel(ctx.Context)
	txEvents := connector.GetTransactionEventChannel(ctx.Context)
	utxoEvents := connector.GetUtxoEventChannel(ctx.Context)

	for {
		select {
		case <-sigCh:
			return nil
		case event := <-connEvents:
			// nolint
			printJSON(map[string]interface{}{
				"event":   event.Type.String(),
				"network": event.Network.Name,
			})
		case event := <-txEvents:
			// nolint
			printJSON(map[string]interface{}{
				"event": event.Type.String(),
				"txs":   event.Txs,
			})
		case event := <-utxoEvents:
			// nolint
			printJSON(map[string]interface{}{
				"event": event.Type.String(),
				"utxos": event.Utxos,
			})
		}
	}
}

func address(ctx *cli.Context) error {
	if err := unlock(ctx); err != nil {
		return err
	}

	if ctx.Bool(newFlag.Name) {
		addr, err := connector.NewAddress(ctx.Context)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{"address": addr})
	}

	addrs, err := connector.GetAddresses(ctx.Context)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{"addresses": addrs})
}

func balance(ctx *cli.Context) error {
	if err := unlock(ctx); err != nil {
		return err
	}

	bal, err := connector.Balance(ctx.Context)
	if err != nil {
		return err
	}
	return printJSON(bal)
}

func send(ctx *cli.Context) error {
	receiversJSON := ctx.String(receiversFlag.Name)
	to := ctx.String(toFlag.Name)
	amount := ctx.Uint64(amountFlag.Name)
	if receiversJSON == "" && to == "" {
		return fmt.Errorf("missing destination, use --to and --amount or --receivers")
	}

	var receivers []types.Receiver
	var err error
	if receiversJSON != "" {
		receivers, err = parseReceivers(receiversJSON)
		if err != nil {
			return err
		}
	} else {
		receivers = []types.Receiver{{To: to, Amount: amount}}
	}

	if err := unlock(ctx); err != nil {
		return err
	}
	if err := connector.Connect(ctx.Context); err != nil &&
		!errors.Is(err, satconnect.ErrAlreadyConnected) {
		return err
	}
	defer func() {
		// nolint
		connector.Disconnect(context.Background())
	}()

	opts := make([]satconnect.Option, 0)
	if rate := ctx.Float64(feeRateFlag.Name); rate > 0 {
		opts = append(opts, satconnect.WithFeeRate(rate))
	}

	txid, err := connector.SendBitcoin(ctx.Context, receivers, opts...)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{"txid": txid})
}

func signMessage(ctx *cli.Context) error {
	message := ctx.String(messageFlag.Name)
	if message == "" {
		return fmt.Errorf("missing message")
	}

	if err := unlock(ctx); err != nil {
		return err
	}

	sig, err := connector.SignMessage(ctx.Context, message)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{"signature": sig})
}

func verifyMessage(ctx *cli.Context) error {
	message := ctx.String(messageFlag.Name)
	signature := ctx.String(signatureFlag.Name)
	if message == "" || signature == "" {
		return fmt.Errorf("missing message or signature")
	}

	valid, err := connector.VerifyMessage(ctx.Context, message, signature)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{"valid": valid})
}

func signPsbt(ctx *cli.Context) error {
	tx := ctx.String(psbtFlag.Name)
	if tx == "" {
		return fmt.Errorf("missing psbt")
	}

	if err := unlock(ctx); err != nil {
		return err
	}

	if ctx.Bool(pushFlag.Name) {
		if err := connector.Connect(ctx.Context); err != nil &&
			!errors.Is(err, satconnect.ErrAlreadyConnected) {
			return err
		}
		defer func() {
			// nolint
			connector.Disconnect(context.Background())
		}()

		txid, err := connector.SignAndPushPsbt(ctx.Context, tx)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{"txid": txid})
	}

	signedTx, err := connector.SignPsbt(ctx.Context, tx)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{"psbt": signedTx})
}

func pushPsbt(ctx *cli.Context) error {
	tx := ctx.Args().First()
	if tx == "" {
		return fmt.Errorf("missing psbt")
	}

	if err := connector.Connect(ctx.Context); err != nil &&
		!errors.Is(err, satconnect.ErrAlreadyConnected) {
		return err
	}
	defer func() {
		// nolint
		connector.Disconnect(context.Background())
	}()

	txid, err := connector.PushPsbt(ctx.Context, tx)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{"txid": txid})
}

func switchNetwork(ctx *cli.Context) error {
	network := ctx.String(networkFlag.Name)
	if network == "" {
		return fmt.Errorf("missing network")
	}

	if err := unlock(ctx); err != nil {
		return err
	}

	if err := connector.SwitchNetwork(
		ctx.Context, types.NetworkFromString(network),
	); err != nil {
		return err
	}
	return printJSON(map[string]interface{}{"network": network})
}

func history(ctx *cli.Context) error {
	if err := unlock(ctx); err != nil {
		return err
	}

	txs, err := connector.GetTransactionHistory(ctx.Context)
	if err != nil {
		return err
	}

	list := make([]map[string]interface{}, 0, len(txs))
	for _, tx := range txs {
		confirmedAt := ""
		if !tx.CreatedAt.IsZero() {
			confirmedAt = tx.CreatedAt.Format(time.RFC3339)
		}
		list = append(list, map[string]interface{}{
			"txid":   tx.Txid,
			"type":   string(tx.Type),
			"amount": tx.Amount,
			"fee":    tx.Fee,
			"date":   confirmedAt,
		})
	}
	return printJSON(list)
}

func dumpPrivKey(ctx *cli.Context) error {
	if err := unlock(ctx); err != nil {
		return err
	}

	privateKey, err := connector.Dump(ctx.Context)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"private_key": privateKey,
	})
}

func getConnector(ctx *cli.Context) (satconnect.WalletConnector, error) {
	dataDir := ctx.String(datadirFlag.Name)
	storeSvc, err := store.NewStore(store.Config{
		ConfigStoreType:  types.FileStore,
		AppDataStoreType: types.KVStore,
		BaseDir:          dataDir,
	})
	if err != nil {
		return nil, err
	}

	cfgData, err := storeSvc.ConfigStore().GetData(context.Background())
	if err != nil {
		return nil, err
	}

	commandName := ctx.Args().First()
	if commandName != "init" && commandName != "version" && cfgData == nil {
		return nil, fmt.Errorf("CLI not initialized, run 'init' cmd to initialize")
	}

	opts := make([]satconnect.ClientOption, 0)
	if ctx.Bool(verboseFlag.Name) {
		opts = append(opts, satconnect.WithVerbose())
	}

	return loadOrCreateConnector(
		satconnect.LoadConnector, satconnect.NewConnector, storeSvc, opts,
	)
}

func loadOrCreateConnector(
	loadFunc, newFunc func(types.Store, ...satconnect.ClientOption) (satconnect.WalletConnector, error),
	storeSvc types.Store, opts []satconnect.ClientOption,
) (satconnect.WalletConnector, error) {
	connector, err := loadFunc(storeSvc, opts...)
	if err != nil {
		if errors.Is(err, satconnect.ErrNotInitialized) {
			return newFunc(storeSvc, opts...)
		}
		return nil, err
	}
	return connector, err
}

func unlock(ctx *cli.Context) error {
	if !connector.IsLocked(ctx.Context) {
		return nil
	}
	password, err := readPassword(ctx)
	if err != nil {
		return err
	}
	return connector.Unlock(ctx.Context, string(password))
}

func parseReceivers(receiversJSON string) ([]types.Receiver, error) {
	list := make([]map[string]interface{}, 0)
	if err := json.Unmarshal([]byte(receiversJSON), &list); err != nil {
		return nil, err
	}

	receivers := make([]types.Receiver, 0, len(list))
	for _, v := range list {
		receivers = append(receivers, types.Receiver{
			To: v["to"].(string), Amount: uint64(v["amount"].(float64)),
		})
	}
	return receivers, nil
}

func readPassword(ctx *cli.Context) ([]byte, error) {
	password := []byte(ctx.String("password"))
	if len(password) == 0 {
		fmt.Print("unlock your wallet with password: ")
		var err error
		password, err = term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return nil, err
		}
	}
	return password, nil
}

func printJSON(resp interface{}) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return err
	}
	fmt.Println(string(jsonBytes))
	return nil
}
