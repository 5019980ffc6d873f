package filestore

import (
	"strconv"
	"time"

	"github.com/satconnect/go-sdk/types"
)

type storeData struct {
	ProviderType         string `json:"provider_type"`
	ProviderURL          string `json:"provider_url"`
	Network              string `json:"network"`
	ExplorerURL          string `json:"explorer_url"`
	ExplorerPollInterval string `json:"explorer_poll_interval"`
	WithTransactionFeed  string `json:"with_transaction_feed"`
	Dust                 string `json:"dust"`
	FeeRateFloor         string `json:"fee_rate_floor"`
}

func (d storeData) isEmpty() bool {
	return d.ProviderType == "" && d.Network == ""
}

func (d storeData) decode() types.Config {
	network := types.NetworkFromString(d.Network)
	pollInterval, _ := strconv.Atoi(d.ExplorerPollInterval)
	withTransactionFeed, _ := strconv.ParseBool(d.WithTransactionFeed)
	dust, _ := strconv.ParseUint(d.Dust, 10, 64)
	feeRateFloor, _ := strconv.ParseFloat(d.FeeRateFloor, 64)

	return types.Config{
		ProviderType:         d.ProviderType,
		ProviderURL:          d.ProviderURL,
		Network:              network,
		ExplorerURL:          d.ExplorerURL,
		ExplorerPollInterval: time.Duration(pollInterval) * time.Second,
		WithTransactionFeed:  withTransactionFeed,
		Dust:                 dust,
		FeeRateFloor:         feeRateFloor,
	}
}

func encode(data types.Config) storeData {
	return storeData{
		ProviderType:         data.ProviderType,
		ProviderURL:          data.ProviderURL,
		Network:              data.Network.Name,
		ExplorerURL:          data.ExplorerURL,
		ExplorerPollInterval: strconv.Itoa(int(data.ExplorerPollInterval.Seconds())),
		WithTransactionFeed:  strconv.FormatBool(data.WithTransactionFeed),
		Dust:                 strconv.FormatUint(data.Dust, 10),
		FeeRateFloor:         strconv.FormatFloat(data.FeeRateFloor, 'f', -1, 64),
	}
}
