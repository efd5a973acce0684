package config

import (
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// EnvPrefix is prepended to every environment override, e.g. ZKPEPE_RPC_URL.
const EnvPrefix = "ZKPEPE"

type Config struct {
	// RPC URL for the blockchain
	RpcURL          string `envconfig:"RPC_URL"`
	ContractAddress string `envconfig:"CONTRACT_ADDRESS"`

	// %s is replaced with the lowercase wallet address
	EligibilityURL string `envconfig:"ELIGIBILITY_URL"`
	ProofURL       string `envconfig:"PROOF_URL"`
	IPCheckURL     string `envconfig:"IP_CHECK_URL"`
	ExplorerTxURL  string `envconfig:"EXPLORER_TX_URL"`

	DelayBetweenFetches DelayRange `envconfig:"FETCH_DELAY"`
	DelayBetweenClaims  DelayRange `envconfig:"CLAIM_DELAY"`

	ShuffleWallets      bool `envconfig:"SHUFFLE_WALLETS"`
	UseProxyForHTTPOnly bool `envconfig:"USE_PROXY_FOR_HTTP_ONLY"`

	ProofAttempts  int           `envconfig:"PROOF_ATTEMPTS"`
	ReceiptTimeout time.Duration `envconfig:"RECEIPT_TIMEOUT"`
	HTTPTimeout    time.Duration `envconfig:"HTTP_TIMEOUT"`

	PrivateKeysFile string `envconfig:"PRIVATE_KEYS_FILE"`
	ProxiesFile     string `envconfig:"PROXIES_FILE"`
	FailsDir        string `envconfig:"FAILS_DIR"`

	LogLevel string `envconfig:"LOG_LEVEL"`
}

type DelayRange struct {
	Min time.Duration `envconfig:"MIN"`
	Max time.Duration `envconfig:"MAX"`
}

// Default configuration
var DefaultConfig = Config{
	RpcURL:          "https://mainnet.era.zksync.io", // zksync era rpc
	ContractAddress: "",                              // claim contract, set ZKPEPE_CONTRACT_ADDRESS

	EligibilityURL: "https://www.zksyncpepe.com/resources/amounts/%s.json",
	ProofURL:       "https://www.zksyncpepe.com/resources/proofs/%s.json",
	IPCheckURL:     "https://api.ipify.org?format=json",
	ExplorerTxURL:  "https://explorer.zksync.io/tx/",

	DelayBetweenFetches: DelayRange{ // delay between eligibility / proof requests
		Min: 2 * time.Second,
		Max: 5 * time.Second,
	},
	DelayBetweenClaims: DelayRange{ // delay between claim transactions
		Min: 1 * time.Minute,
		Max: 3 * time.Minute,
	},

	ShuffleWallets:      true,
	UseProxyForHTTPOnly: false,

	ProofAttempts:  3,
	ReceiptTimeout: 300 * time.Second,
	HTTPTimeout:    30 * time.Second,

	PrivateKeysFile: "private_keys.txt",
	ProxiesFile:     "proxies.txt",
	FailsDir:        "fails",

	LogLevel: "info",
}

// Load starts from DefaultConfig and applies overrides from an optional .env
// file and the process environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}

	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, errors.Wrapf(err, "loading %s", f)
		}
	}

	cfg := DefaultConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "processing environment")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.RpcURL == "" {
		return errors.New("rpc url is empty")
	}
	if !common.IsHexAddress(c.ContractAddress) {
		return errors.Errorf("invalid contract address %q", c.ContractAddress)
	}
	for name, u := range map[string]string{
		"eligibility url": c.EligibilityURL,
		"proof url":       c.ProofURL,
	} {
		if !strings.Contains(u, "%s") {
			return errors.Errorf("%s %q has no %%s address placeholder", name, u)
		}
	}
	if c.IPCheckURL == "" {
		return errors.New("ip check url is empty")
	}
	if err := c.DelayBetweenFetches.validate(); err != nil {
		return errors.Wrap(err, "fetch delay")
	}
	if err := c.DelayBetweenClaims.validate(); err != nil {
		return errors.Wrap(err, "claim delay")
	}
	if c.ProofAttempts < 1 {
		return errors.Errorf("proof attempts must be positive, got %d", c.ProofAttempts)
	}
	if c.ReceiptTimeout <= 0 {
		return errors.New("receipt timeout must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("http timeout must be positive")
	}
	return nil
}

func (c Config) ContractAddressHex() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

func (r DelayRange) validate() error {
	if r.Min < 0 {
		return errors.Errorf("negative minimum %v", r.Min)
	}
	if r.Max < r.Min {
		return errors.Errorf("maximum %v is below minimum %v", r.Max, r.Min)
	}
	return nil
}

func (r DelayRange) GetRandomDelay() time.Duration {
	delta := r.Max - r.Min
	if delta <= 0 {
		return r.Min
	}

	randomDuration := time.Duration(rand.Int63n(int64(delta)))
	return r.Min + randomDuration
}
