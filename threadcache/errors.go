package threadcache

import "errors"

var ErrUnknownOwner = errors.New("threadcache.unknownowner")
var ErrClosed = errors.New("threadcache.closed")
var ErrBadConfig = errors.New("threadcache.badconfig")
