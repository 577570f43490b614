package arena

import "sync/atomic"

import "github.com/bnclabs/golog"

var logok int64

// LogComponents enable logging for this package. By default logging is
// disabled; call with "arena", "self" or "all" to turn it on.
func LogComponents(components ...string) {
	for _, comp := range components {
		switch comp {
		case "arena", "self", "all":
			atomic.StoreInt64(&logok, 1)
		}
	}
}

func debugf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Debugf(format, v...)
	}
}

func infof(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Infof(format, v...)
	}
}

func warnf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Warnf(format, v...)
	}
}

func errorf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Errorf(format, v...)
	}
}
