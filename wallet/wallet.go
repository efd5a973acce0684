package wallet

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"zkpepe_soft/airdrop"
	"zkpepe_soft/blockchain"
	"zkpepe_soft/config"
	"zkpepe_soft/proxy"
)

type AirdropAPI interface {
	ClaimableAmount(ctx context.Context, address common.Address) (*big.Rat, error)
	Proof(ctx context.Context, address common.Address) ([]common.Hash, error)
}

type ProxyChecker interface {
	Verify(ctx context.Context, client *http.Client, rawProxy string) error
}

// Wallet is one claim session: a key, its optional proxy and what the
// airdrop API told us about it.
type Wallet struct {
	number     int
	privateKey string
	proxy      string
	address    common.Address
	key        *ecdsa.PrivateKey

	claimableAmount *big.Rat
	proof           []common.Hash

	config  config.Config
	chain   *blockchain.Client
	api     AirdropAPI
	checker ProxyChecker
	rpcHTTP *http.Client
	log     *zap.Logger
}

type Option func(*Wallet)

func WithAirdropAPI(api AirdropAPI) Option {
	return func(w *Wallet) { w.api = api }
}

func WithProxyChecker(checker ProxyChecker) Option {
	return func(w *Wallet) { w.checker = checker }
}

// WithRPCHTTPClient replaces the transport used for RPC and the IP check.
func WithRPCHTTPClient(client *http.Client) Option {
	return func(w *Wallet) { w.rpcHTTP = client }
}

func New(cfg config.Config, privateKeyHex string, number int, proxyURL string, chain *blockchain.Client, log *zap.Logger, opts ...Option) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing private key")
	}
	address := crypto.PubkeyToAddress(key.PublicKey)

	if proxyURL != "" {
		if _, err := proxy.Parse(proxyURL); err != nil {
			return nil, err
		}
	}

	w := &Wallet{
		number:          number,
		privateKey:      privateKeyHex,
		proxy:           proxyURL,
		address:         address,
		key:             key,
		claimableAmount: new(big.Rat),
		config:          cfg,
		chain:           chain,
		log:             log.With(zap.String("wallet", address.Hex()), zap.Int("number", number)),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.api == nil {
		api, err := airdrop.NewClient(cfg, proxyURL)
		if err != nil {
			return nil, err
		}
		w.api = api
	}
	if w.checker == nil {
		w.checker = proxy.NewChecker(cfg.IPCheckURL)
	}
	if w.rpcHTTP == nil {
		rpcProxy := ""
		if w.proxiesRPC() {
			rpcProxy = proxyURL
		}
		client, err := proxy.NewHTTPClient(rpcProxy, cfg.HTTPTimeout)
		if err != nil {
			return nil, err
		}
		w.rpcHTTP = client
	}

	return w, nil
}

func (w *Wallet) Number() int { return w.number }
func (w *Wallet) Address() common.Address { return w.address }
func (w *Wallet) PrivateKey() string { return w.privateKey }
func (w *Wallet) Proxy() string { return w.proxy }
func (w *Wallet) ClaimableAmount() *big.Rat { return w.claimableAmount }
func (w *Wallet) Proof() []common.Hash { return w.proof }
func (w *Wallet) HasProof() bool { return len(w.proof) > 0 }

func (w *Wallet) proxiesRPC() bool {
	return w.proxy != "" && !w.config.UseProxyForHTTPOnly
}

// CheckEligibility stores and returns the claimable amount. Any failure,
// including a transport error, reads as zero: the API answers non-eligible
// addresses with a non-JSON page, so the two cannot be told apart.
func (w *Wallet) CheckEligibility(ctx context.Context) *big.Rat {
	amount, err := w.api.ClaimableAmount(ctx, w.address)
	if err != nil {
		w.log.Debug("Eligibility response treated as zero", zap.Error(err))
		amount = new(big.Rat)
	}
	w.claimableAmount = amount
	return amount
}

func (w *Wallet) FetchProof(ctx context.Context) error {
	proof, err := w.api.Proof(ctx, w.address)
	if err != nil {
		return err
	}
	w.proof = proof
	return nil
}

// Claim submits the claim transaction and waits for its receipt. Errors are
// *ClaimError values.
func (w *Wallet) Claim(ctx context.Context) error {
	if w.proxiesRPC() {
		if err := w.checker.Verify(ctx, w.rpcHTTP, w.proxy); err != nil {
			return newClaimError(KindProxyWrap, err)
		}
		w.log.Debug("Proxy verified", zap.String("proxy", proxy.Redact(w.proxy)))
	}

	if !w.HasProof() {
		return newClaimError(KindUnexpected, errors.New("no proof"))
	}

	amount, err := blockchain.ToWei(w.claimableAmount)
	if err != nil {
		return newClaimError(KindUnexpected, err)
	}

	backend, err := w.chain.Dial(ctx, w.rpcHTTP)
	if err != nil {
		return newClaimError(KindUnexpected, err)
	}
	defer backend.Close()

	tx, err := w.chain.SendClaimTransaction(ctx, backend, w.key, w.proof, amount)
	if err != nil {
		return classify(err)
	}

	receipt, err := w.chain.WaitForReceipt(ctx, backend, tx)
	if err != nil {
		return classify(err)
	}

	w.log.Debug("Claim receipt",
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("gas_used", receipt.GasUsed),
		zap.Stringer("block", receipt.BlockNumber),
	)
	return nil
}
