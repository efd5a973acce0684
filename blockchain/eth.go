package blockchain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"zkpepe_soft/config"
)

const ClaimMethod = "claim"

// ClaimABI describes claim(bytes32[] proof, uint256 amount) of the airdrop
// distributor.
const ClaimABI = `[{"inputs":[{"internalType":"bytes32[]","name":"_proof","type":"bytes32[]"},{"internalType":"uint256","name":"_amount","type":"uint256"}],"name":"claim","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

var (
	ErrSendTransaction = errors.New("failed to send transaction")
	ErrCheckReceipt    = errors.New("failed to check transaction result")
)

//go:generate mockgen -source=eth.go -destination=mock/backend.go -package=mock

// Backend is the subset of *ethclient.Client used to claim.
type Backend interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	Close()
}

type DialFunc func(ctx context.Context, rpcURL string, httpClient *http.Client) (Backend, error)

// DialEth connects to rpcURL, sending every request through httpClient.
func DialEth(ctx context.Context, rpcURL string, httpClient *http.Client) (Backend, error) {
	rpcClient, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(rpcClient), nil
}

type Client struct {
	config   config.Config
	contract common.Address
	abi      abi.ABI
	dial     DialFunc
	log      *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) (*Client, error) {
	return NewClientWithDialer(cfg, DialEth, log)
}

func NewClientWithDialer(cfg config.Config, dial DialFunc, log *zap.Logger) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(ClaimABI))
	if err != nil {
		return nil, errors.Wrap(err, "parsing claim abi")
	}

	return &Client{
		config:   cfg,
		contract: cfg.ContractAddressHex(),
		abi:      parsed,
		dial:     dial,
		log:      log,
	}, nil
}

func (c *Client) Dial(ctx context.Context, httpClient *http.Client) (Backend, error) {
	backend, err := c.dial(ctx, c.config.RpcURL, httpClient)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", c.config.RpcURL)
	}
	return backend, nil
}

// PackClaim encodes the claim call. amount is in base units.
func (c *Client) PackClaim(proof []common.Hash, amount *big.Int) ([]byte, error) {
	nodes := make([][32]byte, len(proof))
	for i, node := range proof {
		nodes[i] = node
	}

	data, err := c.abi.Pack(ClaimMethod, nodes, amount)
	if err != nil {
		return nil, errors.Wrap(err, "packing claim call")
	}
	return data, nil
}

// SendClaimTransaction builds, signs and submits the claim transaction.
// The latest base fee is used as both fee cap and tip cap. Only a failed
// submission is reported as ErrSendTransaction.
func (c *Client) SendClaimTransaction(ctx context.Context, backend Backend, privateKey *ecdsa.PrivateKey, proof []common.Hash, amount *big.Int) (*types.Transaction, error) {
	fromAddress := crypto.PubkeyToAddress(privateKey.PublicKey)

	data, err := c.PackClaim(proof, amount)
	if err != nil {
		return nil, err
	}

	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "fetching latest header")
	}
	if head.BaseFee == nil {
		return nil, errors.New("latest block has no base fee")
	}
	baseFee := head.BaseFee

	nonce, err := backend.PendingNonceAt(ctx, fromAddress)
	if err != nil {
		return nil, errors.Wrap(err, "fetching nonce")
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching chain id")
	}

	toAddress := c.contract
	gasLimit, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      fromAddress,
		To:        &toAddress,
		GasFeeCap: baseFee,
		GasTipCap: baseFee,
		Value:     big.NewInt(0),
		Data:      data,
	})
	if err != nil {
		return nil, errors.Wrap(err, "estimating gas")
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: baseFee,
		GasFeeCap: baseFee,
		Gas:       gasLimit,
		To:        &toAddress,
		Value:     big.NewInt(0),
		Data:      data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "signing transaction")
	}

	if err := backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, errors.Wrapf(ErrSendTransaction, "%v", err)
	}

	c.log.Info("Claim transaction sent",
		zap.String("wallet", fromAddress.Hex()),
		zap.String("tx", c.TxURL(signedTx.Hash())),
		zap.Uint64("gas", gasLimit),
		zap.String("base_fee", baseFee.String()),
	)

	return signedTx, nil
}

// WaitForReceipt waits up to the configured receipt timeout for tx to be
// mined. A receipt without gas used counts as a failed check.
func (c *Client) WaitForReceipt(ctx context.Context, backend Backend, tx *types.Transaction) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ReceiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		return nil, errors.Wrapf(ErrCheckReceipt, "waiting for %s: %v", tx.Hash().Hex(), err)
	}
	if receipt == nil || receipt.GasUsed == 0 {
		return nil, errors.Wrapf(ErrCheckReceipt, "receipt of %s has no gas used", tx.Hash().Hex())
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		c.log.Warn("Claim transaction reverted",
			zap.String("tx", c.TxURL(tx.Hash())),
			zap.Uint64("gas_used", receipt.GasUsed),
		)
	}

	return receipt, nil
}

func (c *Client) TxURL(hash common.Hash) string {
	return c.config.ExplorerTxURL + hash.Hex()
}
