// Package log2 is a thin leveled wrapper around stdlib log.
// Goals:
// - log level filtering with safe concurrent level change
// - nil *Log is valid and silent, handy for tests and optional subsystems
// - route into testing.T logs via NewTest
package log2

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"math"
	"os"
	"sync/atomic"
	"testing"
)

const (
	Lmicroseconds     int = log.Lmicroseconds
	Lshortfile        int = log.Lshortfile
	LStdFlags         int = log.Ltime | Lshortfile
	LInteractiveFlags int = log.Ltime | Lshortfile | Lmicroseconds
	LServiceFlags     int = Lshortfile
	LTestFlags        int = Lshortfile | Lmicroseconds
)

type Level int32

const (
	LError Level = iota
	LInfo
	LDebug
	LAll Level = math.MaxInt32
)

type FmtFunc func(format string, args ...interface{})

type Log struct {
	l       *log.Logger
	level   Level
	w       io.Writer
	fatalf  FmtFunc
	onError atomic.Value // func(error)
}

func NewStderr(level Level) *Log { return NewWriter(os.Stderr, level) }

func NewWriter(w io.Writer, level Level) *Log {
	if w == nil || w == ioutil.Discard {
		return nil
	}
	return &Log{
		l:     log.New(w, "", LStdFlags),
		level: level,
		w:     w,
	}
}

type fmtWriter struct{ f FmtFunc }

func (fw fmtWriter) Write(b []byte) (int, error) {
	fw.f(string(b))
	return len(b), nil
}

func NewFunc(f FmtFunc, level Level) *Log { return NewWriter(fmtWriter{f}, level) }

func NewTest(t testing.TB, level Level) *Log {
	lg := NewFunc(t.Logf, level)
	lg.fatalf = t.Fatalf
	lg.SetFlags(LTestFlags)
	return lg
}

func (lg *Log) Clone(level Level) *Log {
	if lg == nil {
		return nil
	}
	n := NewWriter(lg.w, level)
	n.l.SetFlags(lg.l.Flags())
	n.fatalf = lg.fatalf
	return n
}

func (lg *Log) SetLevel(level Level) {
	if lg != nil {
		atomic.StoreInt32((*int32)(&lg.level), int32(level))
	}
}

func (lg *Log) SetFlags(f int) {
	if lg != nil {
		lg.l.SetFlags(f)
	}
}

func (lg *Log) SetPrefix(prefix string) {
	if lg != nil {
		lg.l.SetPrefix(prefix)
	}
}

// SetErrorFunc installs a hook called with every Error/Errorf argument,
// e.g. to forward errors to telemetry.
func (lg *Log) SetErrorFunc(f func(error)) {
	if lg != nil {
		lg.onError.Store(f)
	}
}

func (lg *Log) Enabled(level Level) bool {
	return lg != nil && atomic.LoadInt32((*int32)(&lg.level)) >= int32(level)
}

func (lg *Log) Log(level Level, s string) {
	if lg.Enabled(level) {
		_ = lg.l.Output(3, s)
	}
}

func (lg *Log) Logf(level Level, format string, args ...interface{}) {
	if lg.Enabled(level) {
		_ = lg.l.Output(3, fmt.Sprintf(format, args...))
	}
}

func (lg *Log) Error(args ...interface{}) {
	if lg == nil {
		return
	}
	if len(args) == 1 {
		if e, ok := args[0].(error); ok {
			lg.error(e)
		}
	}
	lg.Log(LError, "error: "+fmt.Sprint(args...))
}

func (lg *Log) Errorf(format string, args ...interface{}) {
	if lg == nil {
		return
	}
	s := fmt.Sprintf(format, args...)
	lg.error(fmt.Errorf("%s", s))
	lg.Log(LError, "error: "+s)
}

// Printf/Println satisfy logger interfaces of third party libraries
// (paho mqtt.Logger), routed at info level.
func (lg *Log) Printf(format string, args ...interface{}) { lg.Logf(LInfo, format, args...) }
func (lg *Log) Println(args ...interface{})               { lg.Log(LInfo, fmt.Sprint(args...)) }

func (lg *Log) Info(args ...interface{})                 { lg.Log(LInfo, fmt.Sprint(args...)) }
func (lg *Log) Infof(format string, args ...interface{}) { lg.Logf(LInfo, format, args...) }
func (lg *Log) Debug(args ...interface{})                { lg.Log(LDebug, "debug: "+fmt.Sprint(args...)) }
func (lg *Log) Debugf(format string, args ...interface{}) {
	lg.Logf(LDebug, "debug: "+format, args...)
}

func (lg *Log) Fatal(args ...interface{}) {
	s := fmt.Sprint(args...)
	if lg != nil && lg.fatalf != nil {
		lg.fatalf("%s", s)
		return
	}
	lg.Log(LError, "fatal: "+s)
	os.Exit(1)
}

func (lg *Log) Fatalf(format string, args ...interface{}) {
	if lg != nil && lg.fatalf != nil {
		lg.fatalf(format, args...)
		return
	}
	lg.Logf(LError, "fatal: "+format, args...)
	os.Exit(1)
}

func (lg *Log) error(e error) {
	if lg == nil {
		return
	}
	if f, ok := lg.onError.Load().(func(error)); ok && f != nil {
		f(e)
	}
}
