package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang/mock/gomock"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"zkpepe_soft/blockchain/mock"
	"zkpepe_soft/config"
)

const testContract = "0x000000000000000000000000000000000000dEaD"

func TestClaimSuite(t *testing.T) {
	suite.Run(t, new(ClaimSuite))
}

type ClaimSuite struct {
	suite.Suite

	ctrl    *gomock.Controller
	backend *mock.MockBackend
	client  *Client
	key     *ecdsa.PrivateKey
	proof   []common.Hash
}

func (s *ClaimSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.backend = mock.NewMockBackend(s.ctrl)

	cfg := config.DefaultConfig
	cfg.ContractAddress = testContract
	cfg.ReceiptTimeout = 50 * time.Millisecond

	client, err := NewClientWithDialer(cfg, nil, zap.NewNop())
	s.Require().NoError(err)
	s.client = client

	key, err := crypto.GenerateKey()
	s.Require().NoError(err)
	s.key = key

	s.proof = []common.Hash{
		common.HexToHash("0x01"),
		common.HexToHash("0x02"),
	}
}

func (s *ClaimSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ClaimSuite) expectBuild(baseFee *big.Int) {
	s.backend.EXPECT().HeaderByNumber(gomock.Any(), nil).Return(&types.Header{BaseFee: baseFee}, nil)
	s.backend.EXPECT().PendingNonceAt(gomock.Any(), crypto.PubkeyToAddress(s.key.PublicKey)).Return(uint64(7), nil)
	s.backend.EXPECT().ChainID(gomock.Any()).Return(big.NewInt(324), nil)
	s.backend.EXPECT().EstimateGas(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, call ethereum.CallMsg) (uint64, error) {
			s.Equal(common.HexToAddress(testContract), *call.To)
			s.Equal(baseFee, call.GasFeeCap)
			s.Equal(baseFee, call.GasTipCap)
			return uint64(450000), nil
		})
}

func (s *ClaimSuite) TestPackClaim() {
	amount := big.NewInt(1000)
	data, err := s.client.PackClaim(s.proof, amount)
	s.Require().NoError(err)

	selector := crypto.Keccak256([]byte("claim(bytes32[],uint256)"))[:4]
	s.Equal(selector, data[:4])

	args, err := s.client.abi.Methods[ClaimMethod].Inputs.Unpack(data[4:])
	s.Require().NoError(err)
	s.Require().Len(args, 2)
	s.Equal([][32]byte{s.proof[0], s.proof[1]}, args[0])
	s.Equal(0, amount.Cmp(args[1].(*big.Int)))
}

func (s *ClaimSuite) TestSendClaimTransaction() {
	baseFee := big.NewInt(250_000_000)
	s.expectBuild(baseFee)

	var sent *types.Transaction
	s.backend.EXPECT().SendTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, tx *types.Transaction) error {
			sent = tx
			return nil
		})

	amount := big.NewInt(42)
	tx, err := s.client.SendClaimTransaction(context.Background(), s.backend, s.key, s.proof, amount)
	s.Require().NoError(err)
	s.Require().NotNil(sent)
	s.Equal(sent.Hash(), tx.Hash())

	s.Equal(uint8(types.DynamicFeeTxType), tx.Type())
	s.Equal(uint64(7), tx.Nonce())
	s.Equal(uint64(450000), tx.Gas())
	s.Equal(0, baseFee.Cmp(tx.GasFeeCap()))
	s.Equal(0, baseFee.Cmp(tx.GasTipCap()))
	s.Equal(0, big.NewInt(324).Cmp(tx.ChainId()))
	s.Equal(common.HexToAddress(testContract), *tx.To())

	data, err := s.client.PackClaim(s.proof, amount)
	s.Require().NoError(err)
	s.Equal(data, tx.Data())

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	s.Require().NoError(err)
	s.Equal(crypto.PubkeyToAddress(s.key.PublicKey), from)
}

func (s *ClaimSuite) TestSendFailureIsSendError() {
	s.expectBuild(big.NewInt(1))
	s.backend.EXPECT().SendTransaction(gomock.Any(), gomock.Any()).Return(errors.New("nonce too low"))

	_, err := s.client.SendClaimTransaction(context.Background(), s.backend, s.key, s.proof, big.NewInt(1))
	s.Require().Error(err)
	s.True(pkgerrors.Is(err, ErrSendTransaction))
	s.Contains(err.Error(), "nonce too low")
}

func (s *ClaimSuite) TestEstimateFailureIsNotSendError() {
	s.backend.EXPECT().HeaderByNumber(gomock.Any(), nil).Return(&types.Header{BaseFee: big.NewInt(1)}, nil)
	s.backend.EXPECT().PendingNonceAt(gomock.Any(), gomock.Any()).Return(uint64(0), nil)
	s.backend.EXPECT().ChainID(gomock.Any()).Return(big.NewInt(324), nil)
	s.backend.EXPECT().EstimateGas(gomock.Any(), gomock.Any()).Return(uint64(0), errors.New("execution reverted"))

	_, err := s.client.SendClaimTransaction(context.Background(), s.backend, s.key, s.proof, big.NewInt(1))
	s.Require().Error(err)
	s.False(pkgerrors.Is(err, ErrSendTransaction))
	s.Contains(err.Error(), "estimating gas")
}

func (s *ClaimSuite) TestMissingBaseFee() {
	s.backend.EXPECT().HeaderByNumber(gomock.Any(), nil).Return(&types.Header{}, nil)

	_, err := s.client.SendClaimTransaction(context.Background(), s.backend, s.key, s.proof, big.NewInt(1))
	s.Require().Error(err)
	s.Contains(err.Error(), "base fee")
}

func (s *ClaimSuite) signedTx() *types.Transaction {
	to := common.HexToAddress(testContract)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(324),
		Nonce:     1,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(1),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(0),
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(324)), s.key)
	s.Require().NoError(err)
	return signed
}

func (s *ClaimSuite) TestWaitForReceipt() {
	tx := s.signedTx()
	s.backend.EXPECT().TransactionReceipt(gomock.Any(), tx.Hash()).Return(&types.Receipt{
		Status:  types.ReceiptStatusSuccessful,
		GasUsed: 120000,
	}, nil)

	receipt, err := s.client.WaitForReceipt(context.Background(), s.backend, tx)
	s.Require().NoError(err)
	s.Equal(uint64(120000), receipt.GasUsed)
}

func (s *ClaimSuite) TestWaitForReceiptTimeout() {
	tx := s.signedTx()
	s.backend.EXPECT().TransactionReceipt(gomock.Any(), tx.Hash()).Return(nil, ethereum.NotFound).AnyTimes()

	_, err := s.client.WaitForReceipt(context.Background(), s.backend, tx)
	s.Require().Error(err)
	s.True(pkgerrors.Is(err, ErrCheckReceipt))
}

func (s *ClaimSuite) TestWaitForReceiptWithoutGasUsed() {
	tx := s.signedTx()
	s.backend.EXPECT().TransactionReceipt(gomock.Any(), tx.Hash()).Return(&types.Receipt{}, nil)

	_, err := s.client.WaitForReceipt(context.Background(), s.backend, tx)
	s.Require().Error(err)
	s.True(pkgerrors.Is(err, ErrCheckReceipt))
}

func (s *ClaimSuite) TestTxURL() {
	hash := common.HexToHash("0xabc")
	s.Equal("https://explorer.zksync.io/tx/"+hash.Hex(), s.client.TxURL(hash))
}
