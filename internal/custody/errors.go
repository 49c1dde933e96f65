package custody

import "errors"

var (
	ErrAlreadyInitialized        = errors.New("custody already initialized")
	ErrNotInitialized            = errors.New("custody not initialized")
	ErrUnauthorized              = errors.New("unauthorized")
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrInvalidState              = errors.New("invalid loan state")
	ErrPoolAlreadyExists         = errors.New("pool already exists")
	ErrSlippageExceeded          = errors.New("slippage exceeded")
	ErrLoanNotMature             = errors.New("loan not mature")
	ErrLoanExpired               = errors.New("loan expired")
	ErrLoanNotFound              = errors.New("loan not found")
	ErrProgramPaused             = errors.New("program paused")
	ErrInvalidArgument           = errors.New("invalid argument")
	ErrInvalidMint               = errors.New("invalid mint")
	ErrInvalidFee                = errors.New("invalid fee")
	ErrInvalidDuration           = errors.New("invalid loan duration")
	ErrInvalidPrincipal          = errors.New("invalid principal amount")
	ErrInsufficientTokenSupply   = errors.New("token side must be the full mint supply")
	ErrMintAuthorityNotRevoked   = errors.New("mint authority must be revoked")
	ErrFreezeAuthorityNotRevoked = errors.New("freeze authority must be revoked")
	ErrArithmeticOverflow        = errors.New("arithmetic overflow")
)

var rejections = []error{
	ErrAlreadyInitialized,
	ErrNotInitialized,
	ErrUnauthorized,
	ErrInsufficientFunds,
	ErrInvalidState,
	ErrPoolAlreadyExists,
	ErrSlippageExceeded,
	ErrLoanNotMature,
	ErrLoanExpired,
	ErrLoanNotFound,
	ErrProgramPaused,
	ErrInvalidArgument,
	ErrInvalidMint,
	ErrInvalidFee,
	ErrInvalidDuration,
	ErrInvalidPrincipal,
	ErrInsufficientTokenSupply,
	ErrMintAuthorityNotRevoked,
	ErrFreezeAuthorityNotRevoked,
	ErrArithmeticOverflow,
}

// IsRejection reports whether err is a custody rule rejecting the operation,
// as opposed to an infrastructure failure that may succeed on retry.
func IsRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
