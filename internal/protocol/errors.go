package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Request validation.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNotFound      = "E_NOT_FOUND"
	ErrNameTaken     = "E_NAME_TAKEN"
	ErrPointOccupied = "E_POINT_OCCUPIED"
	ErrLimit         = "E_LIMIT"
	ErrNoPermission  = "E_NO_PERMISSION"

	// Exchange outcomes that are not plain validation failures travel in
	// RESULT.Data["outcome"]; E_REJECTED marks the op as unsuccessful.
	ErrRejected = "E_REJECTED"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrNotFound:        {},
	ErrNameTaken:       {},
	ErrPointOccupied:   {},
	ErrLimit:           {},
	ErrNoPermission:    {},
	ErrRejected:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
