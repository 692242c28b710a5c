package protocol

const (
	// Envelope/transport validation.
	ErrBadMessage      = "E_BAD_MESSAGE"
	ErrVersionMismatch = "E_VERSION_MISMATCH"

	// Join handling.
	ErrNameTaken = "E_NAME_TAKEN"
	ErrMatchFull = "E_MATCH_FULL"

	// Tick/action layer.
	ErrOutOfOrder    = "E_OUT_OF_ORDER"
	ErrBadAction     = "E_BAD_ACTION"
	ErrUnknownEntity = "E_UNKNOWN_ENTITY"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadMessage:      {},
	ErrVersionMismatch: {},
	ErrNameTaken:       {},
	ErrMatchFull:       {},
	ErrOutOfOrder:      {},
	ErrBadAction:       {},
	ErrUnknownEntity:   {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

// KnownCode reports whether the host error code is one we understand. The
// empty code (no error) counts as known.
func KnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
