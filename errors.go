package bufpool

import "errors"

var ErrBadConfig = errors.New("bufpool.badconfig")
var ErrOutOfMemory = errors.New("bufpool.outofmemory")
var ErrClosed = errors.New("bufpool.closed")
var ErrPoolHalfDisabled = errors.New("bufpool.halfdisabled")
