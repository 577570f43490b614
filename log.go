package bufpool

import "sync/atomic"

import "github.com/bnclabs/golog"

var logok int64

// LogComponents switches on debugf/infof/warnf/errorf output for this
// package. Valid component names are "bufpool", "self" and "all".
func LogComponents(components ...string) {
	for _, comp := range components {
		switch comp {
		case "bufpool", "self", "all":
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
