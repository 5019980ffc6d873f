package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	satconnect "github.com/satconnect/go-sdk"
	"github.com/satconnect/go-sdk/store"
	"github.com/satconnect/go-sdk/types"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

var (
	Version   string
	connector satconnect.WalletConnector
)

func main() {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "satconnect REPL"
	app.Usage = "interactive shell using the stateful DB (SQL store + tx feed)"
	app.Flags = []cli.Flag{
		datadirFlag, verboseFlag, explorerFlag, networkFlag, passwordFlag,
	}
	app.Action = func(ctx *cli.Context) error {
		client, err := getReplConnector(ctx)
		if err != nil {
			return err
		}
		connector = client
		return repl(ctx)
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

var (
	datadirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Specify the data directory",
		Value: btcutil.AppDataDir("satconnect-repl", false),
	}
	explorerFlag = &cli.StringFlag{
		Name:  "explorer",
		Usage: "the url of the explorer to use",
	}
	passwordFlag = &cli.StringFlag{
		Name:  "password",
		Usage: "password to unlock the wallet",
	}
	networkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "bitcoin network (required on first run)",
		Value: types.Bitcoin.Name,
	}
	verboseFlag = &cli.BoolFlag{
		Name:        "verbose",
		Usage:       "enable debug logs",
		Value:       false,
		DefaultText: "false",
	}
)

func getReplConnector(ctx *cli.Context) (satconnect.WalletConnector, error) {
	dataDir := ctx.String(datadirFlag.Name)
	storeSvc, err := store.NewStore(store.Config{
		ConfigStoreType:  types.FileStore,
		AppDataStoreType: types.SQLStore,
		BaseDir:          dataDir,
	})
	if err != nil {
		return nil, err
	}

	cfgData, err := storeSvc.ConfigStore().GetData(context.Background())
	if err != nil {
		return nil, err
	}

	opts := make([]satconnect.ClientOption, 0)
	if ctx.Bool(verboseFlag.Name) {
		opts = append(opts, satconnect.WithVerbose())
	}

	client, err := loadOrCreateConnector(
		satconnect.LoadConnector, satconnect.NewConnector, storeSvc, opts,
	)
	if err != nil {
		return nil, err
	}

	if cfgData == nil {
		password, err := readPassword(ctx)
		if err != nil {
			return nil, err
		}

		if err := client.Init(ctx.Context, satconnect.InitArgs{
			ProviderType:         "singlekey",
			Network:              ctx.String(networkFlag.Name),
			Password:             string(password),
			ExplorerURL:          ctx.String(explorerFlag.Name),
			ExplorerPollInterval: 30 * time.Second,
			WithTransactionFeed:  true,
		}); err != nil {
			return nil, err
		}
	}

	return client, nil
}

func loadOrCreateConnector(
	loadFunc, newFunc func(types.Store, ...satconnect.ClientOption) (satconnect.WalletConnector, error),
	storeSvc types.Store, opts []satconnect.ClientOption,
) (satconnect.WalletConnector, error) {
	client, err := loadFunc(storeSvc, opts...)
	if err != nil {
		if errors.Is(err, satconnect.ErrNotInitialized) {
			return newFunc(storeSvc, opts...)
		}
		return nil, err
	}
	return client, err
}

func repl(ctx *cli.Context) error {
	fmt.Println("satconnect REPL (stateful) - commands: help, unlock, lock, connect, disconnect, balance, send <to> <amount>, sign <message>, utxos [all|spendable|spent], txs, config, receive, switch <network>, quit")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("sat> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])

		switch cmd {
		case "quit", "exit":
			if connector.IsConnected() {
				// nolint
				connector.Disconnect(ctx.Context)
			}
			return nil
		case "help":
			fmt.Println("Commands:")
			fmt.Println("  unlock [password]     - unlock the wallet (password optional, will prompt if omitted)")
			fmt.Println("  lock                  - lock the wallet")
			fmt.Println("  connect               - connect the provider and start tracking addresses")
			fmt.Println("  disconnect            - stop tracking and disconnect the provider")
			fmt.Println("  balance               - show balance from the local DB")
			fmt.Println("  send <to> <amount>    - send sats onchain")
			fmt.Println("  sign <message>        - sign a message with the wallet key")
			fmt.Println("  utxos [all|spendable|spent] - list utxos from DB")
			fmt.Println("  txs                   - list transactions from DB")
			fmt.Println("  config                - show current config")
			fmt.Println("  receive               - show current addresses")
			fmt.Println("  switch <network>      - move the wallet to another network")
			fmt.Println("  quit / exit           - leave the REPL")
		case "unlock":
			var pwd string
			if flagPwd := ctx.String(passwordFlag.Name); flagPwd != "" {
				pwd = flagPwd
			}
			if len(fields) > 1 {
				pwd = strings.Join(fields[1:], " ")
			}
			if pwd == "" {
				fmt.Print("unlock your wallet with password: ")
				rawPwd, err := term.ReadPassword(int(syscall.Stdin))
				fmt.Println()
				if err != nil {
					fmt.Printf("error reading password: %v\n", err)
					continue
				}
				pwd = string(rawPwd)
			}
			if err := connector.Unlock(ctx.Context, pwd); err != nil {
				fmt.Printf("unlock error: %v\n", err)
				continue
			}
			fmt.Println("wallet unlocked")
		case "lock":
			if err := connector.Lock(ctx.Context); err != nil {
				fmt.Printf("lock error: %v\n", err)
				continue
			}
			fmt.Println("wallet locked")
		case "connect":
			if err := ensureUnlocked(ctx); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			if err := connector.Connect(ctx.Context); err != nil {
				fmt.Printf("connect error: %v\n", err)
				continue
			}
			fmt.Println("connected")
		case "disconnect":
			if err := connector.Disconnect(ctx.Context); err != nil {
				fmt.Printf("disconnect error: %v\n", err)
				continue
			}
			fmt.Println("disconnected")
		case "balance":
			bal, err := connector.Balance(ctx.Context)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			_ = printJSON(bal)
		case "utxos":
			mode := "all"
			if len(fields) > 1 {
				mode = strings.ToLower(fields[1])
			}
			spendable, spent, err := connector.ListUtxos(ctx.Context)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			switch mode {
			case "spendable":
				_ = printJSON(spendable)
			case "spent":
				_ = printJSON(spent)
			default:
				fmt.Println("spendable:")
				_ = printJSON(spendable)
				fmt.Println("spent:")
				_ = printJSON(spent)
			}
		case "txs":
			txs, err := connector.GetTransactionHistory(ctx.Context)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			_ = printJSON(txs)
		case "config":
			cfg, err := connector.GetConfigData(ctx.Context)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			_ = printJSON(cfg)
		case "receive":
			if err := ensureUnlocked(ctx); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			addrs, err := connector.GetAddresses(ctx.Context)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			_ = printJSON(map[string]interface{}{"addresses": addrs})
		case "send":
			if len(fields) < 3 {
				fmt.Println("usage: send <to> <amount>")
				continue
			}
			if err := ensureUnlocked(ctx); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			amount, err := strconv.ParseUint(fields[2], 10, 64)
			if err != nil {
				fmt.Printf("invalid amount: %v\n", err)
				continue
			}
			txid, err := connector.SendBitcoin(ctx.Context, []types.Receiver{
				{To: fields[1], Amount: amount},
			})
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			_ = printJSON(map[string]string{"txid": txid})
		case "sign":
			if len(fields) < 2 {
				fmt.Println("usage: sign <message>")
				continue
			}
			if err := ensureUnlocked(ctx); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			sig, err := connector.SignMessage(ctx.Context, strings.Join(fields[1:], " "))
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			_ = printJSON(map[string]string{"signature": sig})
		case "switch":
			if len(fields) < 2 {
				fmt.Println("usage: switch <network>")
				continue
			}
			if err := ensureUnlocked(ctx); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			if err := connector.SwitchNetwork(
				ctx.Context, types.NetworkFromString(fields[1]),
			); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Printf("switched to %s\n", fields[1])
		default:
			fmt.Printf("unknown command %q, type 'help'\n", cmd)
		}
	}
}

func ensureUnlocked(ctx *cli.Context) error {
	if !connector.IsLocked(ctx.Context) {
		return nil
	}
	pwd := ctx.String(passwordFlag.Name)
	if pwd == "" {
		fmt.Print("unlock your wallet with password: ")
		rawPwd, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return err
		}
		pwd = string(rawPwd)
	}
	return connector.Unlock(ctx.Context, pwd)
}

func readPassword(ctx *cli.Context) ([]byte, error) {
	password := []byte(ctx.String(passwordFlag.Name))
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
