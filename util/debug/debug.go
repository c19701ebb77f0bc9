/*
 * frost - Log debug data to a file
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package debug implements bitmask-gated component tracers for the memory
// hierarchy simulator: cache, dram, ptw and os each get an independent
// level so a run can trace e.g. only DRAM scheduling without drowning in
// cache traffic.
package debug

import (
	"fmt"
	"os"
)

const (
	Cache = 1 << iota
	Dram
	Ptw
	OS
	Front
)

var (
	logFile *os.File
	mask    int
)

// SetFile points all component traces at an already-open file.
func SetFile(f *os.File) {
	logFile = f
}

// SetMask enables the OR of the component bits passed in.
func SetMask(m int) {
	mask = m
}

// Tracef emits a trace line for component if its bit is set in the mask.
func Tracef(component int, format string, a ...interface{}) {
	if logFile == nil || (mask&component) == 0 {
		return
	}
	fmt.Fprintf(logFile, format+"\n", a...)
}

// Coref traces a line tagged with a coreid, used by per-core subsystems
// (PTW, TLBs, front end).
func Coref(component int, coreid uint8, format string, a ...interface{}) {
	if logFile == nil || (mask&component) == 0 {
		return
	}
	fmt.Fprintf(logFile, "core%d: "+format+"\n", append([]interface{}{coreid}, a...)...)
}
