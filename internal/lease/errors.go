package lease

import "errors"

// NotLoadedMessage is the text shown to users when an operation runs before a lease is loaded.
const NotLoadedMessage = "Error: No lease loaded. Please load a lease first."

var (
	ErrNotLoaded          = errors.New("no lease loaded")
	ErrMissingPriceFields = errors.New("missing required information (city, state, or rent amount)")
	ErrEmptyLease         = errors.New("lease text is empty")
	ErrNoTextExtractor    = errors.New("no text extractor configured")
	ErrShapeMismatch      = errors.New("prompt answer shape mismatch")
)
