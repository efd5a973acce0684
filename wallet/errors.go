package wallet

import (
	"github.com/pkg/errors"

	"zkpepe_soft/blockchain"
)

// Kind tells the driver which failure bucket a claim error belongs to.
type Kind int

const (
	KindUnexpected Kind = iota
	KindProxyWrap
	KindSend
	KindCheckResult
)

func (k Kind) String() string {
	switch k {
	case KindProxyWrap:
		return "proxy wrap"
	case KindSend:
		return "send"
	case KindCheckResult:
		return "check result"
	default:
		return "unexpected"
	}
}

type ClaimError struct {
	Kind Kind
	Err  error
}

func (e *ClaimError) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *ClaimError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a claim error; anything that is not a
// *ClaimError is unexpected.
func KindOf(err error) Kind {
	var claimErr *ClaimError
	if errors.As(err, &claimErr) {
		return claimErr.Kind
	}
	return KindUnexpected
}

func newClaimError(kind Kind, err error) error {
	return &ClaimError{Kind: kind, Err: err}
}

// classify maps chain errors onto claim kinds.
func classify(err error) error {
	switch {
	case errors.Is(err, blockchain.ErrSendTransaction):
		return newClaimError(KindSend, err)
	case errors.Is(err, blockchain.ErrCheckReceipt):
		return newClaimError(KindCheckResult, err)
	default:
		return newClaimError(KindUnexpected, err)
	}
}
