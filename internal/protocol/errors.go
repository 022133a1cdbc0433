package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrUnknownMethod   = "E_UNKNOWN_METHOD"

	// Game-side lookups.
	ErrUnknownHost   = "E_UNKNOWN_HOST"
	ErrUnknownTarget = "E_UNKNOWN_TARGET"

	// Dispatch layer.
	ErrNoCapacity = "E_NO_CAPACITY"
	ErrBadThreads = "E_BAD_THREADS"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrUnknownMethod:   {},
	ErrUnknownHost:     {},
	ErrUnknownTarget:   {},
	ErrNoCapacity:      {},
	ErrBadThreads:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
