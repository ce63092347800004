package search

import "errors"

// Search errors
var (
	ErrTrialFinalized  = errors.New("trial already finalized")
	ErrUnknownTrial    = errors.New("unknown trial")
	ErrInvalidOutcome  = errors.New("invalid trial outcome")
	ErrInvalidOptions  = errors.New("invalid search options")
	ErrProposalOffGrid = errors.New("sampler proposed a point off the grid")
)
