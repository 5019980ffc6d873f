package satconnect

import (
	"fmt"

	"github.com/satconnect/go-sdk/explorer"
	log "github.com/sirupsen/logrus"
)

// ClientOption customizes the connector at construction time.
type ClientOption func(c *connector)

// WithVerbose enables debug logging.
func WithVerbose() ClientOption {
	return func(*connector) {
		log.SetLevel(log.DebugLevel)
	}
}

// WithExplorer plugs a custom chain explorer in place of the one built from
// the stored configuration. Switching networks re-points the connector to
// the default explorer of the new chain.
func WithExplorer(explorerSvc explorer.Explorer) ClientOption {
	return func(c *connector) {
		c.explorer = explorerSvc
	}
}

type Option func(options any) error

// SendOptions customizes coin selection and fee handling of SendBitcoin.
type SendOptions struct {
	FeeRate          float64
	ChangeAddress    string
	SpendUnconfirmed bool
	RbfDisabled      bool
}

func newDefaultSendOptions() *SendOptions {
	return &SendOptions{}
}

// WithFeeRate overrides the fee rate fetched from the explorer, in sat/vB.
func WithFeeRate(rate float64) Option {
	return func(o any) error {
		opts, err := checkSendOptionsType(o)
		if err != nil {
			return err
		}

		if rate <= 0 {
			return fmt.Errorf("fee rate must be positive")
		}
		opts.FeeRate = rate
		return nil
	}
}

// WithChangeAddress sends change to the given address instead of a fresh
// one derived from the provider.
func WithChangeAddress(addr string) Option {
	return func(o any) error {
		opts, err := checkSendOptionsType(o)
		if err != nil {
			return err
		}

		opts.ChangeAddress = addr
		return nil
	}
}

// WithSpendUnconfirmed allows selecting unconfirmed coins.
func WithSpendUnconfirmed(o any) error {
	opts, err := checkSendOptionsType(o)
	if err != nil {
		return err
	}

	opts.SpendUnconfirmed = true
	return nil
}

// WithoutRbf disables BIP125 replace-by-fee signaling.
func WithoutRbf(o any) error {
	opts, err := checkSendOptionsType(o)
	if err != nil {
		return err
	}

	opts.RbfDisabled = true
	return nil
}

func checkSendOptionsType(o any) (*SendOptions, error) {
	opts, ok := o.(*SendOptions)
	if !ok {
		return nil, fmt.Errorf("invalid send options type")
	}
	return opts, nil
}

// SignOptions customizes SignPsbt.
type SignOptions struct {
	// InputsToSign restricts signing to the given input indexes. Empty
	// signs every input the provider can sign.
	InputsToSign []int
}

func newDefaultSignOptions() *SignOptions {
	return &SignOptions{}
}

// WithInputsToSign restricts signing to the given input indexes.
func WithInputsToSign(indexes ...int) Option {
	return func(o any) error {
		opts, err := checkSignOptionsType(o)
		if err != nil {
			return err
		}

		if len(indexes) == 0 {
			return fmt.Errorf("no input indexes provided")
		}
		opts.InputsToSign = indexes
		return nil
	}
}

func checkSignOptionsType(o any) (*SignOptions, error) {
	opts, ok := o.(*SignOptions)
	if !ok {
		return nil, fmt.Errorf("invalid sign options type")
	}
	return opts, nil
}
