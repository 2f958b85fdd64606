package asset

import "errors"

var (
	// ErrAssetUnavailable indicates the asset could not be fetched or decoded.
	ErrAssetUnavailable = errors.New("asset unavailable")

	// ErrAccessDenied indicates the source refused access to the asset.
	ErrAccessDenied = errors.New("asset access denied")

	// ErrNetworkRequired indicates a remote-backed asset was requested
	// without FetchOptions.NetworkAllowed.
	ErrNetworkRequired = errors.New("asset requires network access")

	// ErrUnsupportedKind indicates the asset kind does not fit the operation.
	ErrUnsupportedKind = errors.New("unsupported asset kind")
)
