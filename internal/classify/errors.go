package classify

import "github.com/rotisserie/eris"

var (
	// ErrInvalidArgument is returned for empty input, a bad class count, an unknown scheme or
	// non-finite values without DropInvalid. No partial result accompanies it.
	ErrInvalidArgument = eris.New("classify: invalid argument")

	// ErrDegenerateInput marks input whose finite values are all equal. Classify does not
	// return it; the result carries Degenerate instead and Result.Err exposes it on request.
	ErrDegenerateInput = eris.New("classify: degenerate input")
)
