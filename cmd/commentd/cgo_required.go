//go:build !cgo

package main

// This file forces a build failure when CGO is disabled.
// commentd needs CGO for audio playback, opus decoding and global hotkeys.
//
// #include <stdlib.h>
import "C"
