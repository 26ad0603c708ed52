package effect

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// ActionSource records where an action was dispatched from.
type ActionSource struct {
	File     string
	Function string
	Line     int
	Info     string
}

func (s ActionSource) String() string {
	if s.Info != "" {
		return fmt.Sprintf("%s:%d %s (%s)", filepath.Base(s.File), s.Line, s.Function, s.Info)
	}
	return fmt.Sprintf("%s:%d %s", filepath.Base(s.File), s.Line, s.Function)
}

// Here captures the caller's location. The first info, if any, is kept as Info.
func Here(info ...string) ActionSource {
	return here(2, info...)
}

func here(skip int, info ...string) ActionSource {
	src := ActionSource{}
	if len(info) > 0 {
		src.Info = info[0]
	}
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return src
	}
	src.File = file
	src.Line = line
	if fn := runtime.FuncForPC(pc); fn != nil {
		src.Function = fn.Name()
	}
	return src
}

// DispatchedAction is an action together with its origin.
type DispatchedAction[A any] struct {
	Action     A
	Dispatcher ActionSource
}

func Dispatched[A any](action A, dispatcher ActionSource) DispatchedAction[A] {
	return DispatchedAction[A]{Action: action, Dispatcher: dispatcher}
}
