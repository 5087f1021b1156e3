package aam

import "github.com/pkg/errors"

// Configuration errors.
var (
	ErrInvalidShape         = errors.New("invalid shape vector")
	ErrInvalidTriangulation = errors.New("invalid triangulation")
	ErrInvalidDimensions    = errors.New("invalid image dimensions")
	ErrDimensionMismatch    = errors.New("dimension mismatch")
	ErrInvalidModel         = errors.New("invalid appearance model")
	ErrTooFewSamples        = errors.New("too few samples")
)

// Numerical errors.
var (
	ErrDegenerateTriangle = errors.New("degenerate triangle")
	ErrSingularTransform  = errors.New("singular transform")
	ErrSingularHessian    = errors.New("singular hessian")
	ErrNoValidSamples     = errors.New("no sample falls inside the image")
	ErrNonFiniteUpdate    = errors.New("parameter update is not finite")
)

// Session errors.
var (
	ErrNotInitialized = errors.New("matcher is not initialized")
	ErrSessionAborted = errors.New("matching session aborted")
	ErrSessionDone    = errors.New("matching session is done")
)
