package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("invalid signal")
	ErrUnknownMarket    = errors.New("unknown market")
	ErrOrderRejected    = errors.New("order rejected")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrRateLimited      = errors.New("rate limited")
	ErrStateCorrupt     = errors.New("state file corrupt")
	ErrPositionExists   = errors.New("position already open")
)
