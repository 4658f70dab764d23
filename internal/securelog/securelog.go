// Package securelog logs failures in the comment pipeline without comment
// text, user names or urls. Only code locations, error types and record
// kinds reach the log.
package securelog

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
)

var dropped atomic.Uint64

// Error logs where err surfaced and the types in its wrap chain.
func Error(context string, err error) {
	if err == nil {
		return
	}
	if context == "" {
		context = "none"
	}
	log.Printf("error at %s context=%s types=%s", callerLocation(2), context, strings.Join(errorTypes(err), "->"))
}

// Drop records a protocol record that was discarded. Only the record kind
// and the key that was not understood are logged.
func Drop(kind, key string) {
	if key == "" {
		key = "none"
	}
	dropped.Add(1)
	log.Printf("drop at %s kind=%s key=%s", callerLocation(2), kind, key)
}

// Dropped is the number of records discarded since start.
func Dropped() uint64 {
	return dropped.Load()
}

// callerLocation is "file.go:line pkg.Func" for the frame skip levels up.
func callerLocation(skip int) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	name := "unknown"
	if fn := runtime.FuncForPC(pc); fn != nil {
		name = fn.Name()
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
	}
	return fmt.Sprintf("%s:%d %s", filepath.Base(file), line, name)
}

func errorTypes(err error) []string {
	var types []string
	seen := map[string]bool{}
	for ; err != nil; err = errors.Unwrap(err) {
		name := fmt.Sprintf("%T", err)
		if !seen[name] {
			seen[name] = true
			types = append(types, name)
		}
	}
	return types
}
