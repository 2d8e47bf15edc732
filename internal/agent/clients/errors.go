package client

import (
	"errors"
)

var ErrInvalidEvent = errors.New("invalid event message")
var ErrFeedClosed = errors.New("event feed closed")
var ErrSubscribe = errors.New("redis subscribe failed")
