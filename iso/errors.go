package iso

import "errors"

var (
	errInvalidNameLength = errors.New("iso: ISO address claim payload must be 8 bytes")

	// ErrAddressClaimFailed is returned by Application.Run when every address in the allocation pool was
	// contested and no address could be claimed.
	ErrAddressClaimFailed = errors.New("iso: could not claim a bus address, pool exhausted")
	// ErrNotActive reports that a Controller Application has not reached the Active state. No function in
	// this package returns it.
	ErrNotActive = errors.New("iso: application is not in the Active state")

	errInvalidGroupFunctionLength = errors.New("iso: group function payload too short")
)
