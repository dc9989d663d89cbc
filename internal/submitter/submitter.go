package submitter

import "context"

type VAASubmitter interface {
	// SubmitVAA verifies and posts the given VAA bytes on a core bridge and returns its message hash or an error
	SubmitVAA(ctx context.Context, vaaBytes []byte) (string, error)
}
