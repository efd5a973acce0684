package blockchain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
	"github.com/pkg/errors"
)

// ToWei converts a token amount in display units to base units (18
// decimals). Fractions below one base unit are truncated.
func ToWei(amount *big.Rat) (*big.Int, error) {
	if amount == nil {
		return nil, errors.New("nil amount")
	}
	if amount.Sign() < 0 {
		return nil, errors.Errorf("negative amount %s", amount.FloatString(18))
	}

	wei := new(big.Rat).Mul(amount, new(big.Rat).SetInt(big.NewInt(params.Ether)))
	return new(big.Int).Quo(wei.Num(), wei.Denom()), nil
}
