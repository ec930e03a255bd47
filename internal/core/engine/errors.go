package engine

import "errors"

var (
	// ErrEngineUnavailable indicates the downloader sidecar could not be
	// reached at the transport level.
	ErrEngineUnavailable = errors.New("downloader engine unavailable")

	// ErrEngineRejected indicates the sidecar answered but refused the
	// request.
	ErrEngineRejected = errors.New("downloader engine rejected request")
)
