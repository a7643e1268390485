package discovery

import "errors"

var (
	// ErrNoInterfaces means no usable IPv4 interface address was found
	ErrNoInterfaces = errors.New("no usable IPv4 interfaces")

	// ErrNoAnswer means the mDNS query got no matching A record
	ErrNoAnswer = errors.New("no mDNS answer")
)
