/*
 * frost - Configuration file parser
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

// Package simconfig parses an optional cache/DRAM geometry override file.
//
// Configuration file format:
//
//	A line whose first non-blank character is '#' is a comment.
//	<line> := <key> <whitespace> '=' <whitespace> <value>
//	<key>  := <model> '.' <field>
//	<model> := 'l1i' | 'l1d' | 'l2' | 'llc' | 'dram'
//	<value> := <number>
package simconfig

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Overrides holds every key = value pair read from the file; a key that
// is absent leaves the corresponding default unchanged.
type Overrides map[string]uint64

// Load reads key = value pairs from path, skipping blank lines and
// lines whose first non-blank character is '#'.
func Load(path string) (Overrides, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("simconfig: open %s: %w", path, err)
	}
	defer f.Close()

	out := make(Overrides)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("simconfig: %s:%d: expected key = value", path, lineNo)
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("simconfig: %s:%d: bad value %q for %s: %w", path, lineNo, val, key, err)
		}
		out[key] = n
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("simconfig: %s: %w", path, err)
	}
	return out, nil
}

// Uint64 looks up key, returning (value, true) if present.
func (o Overrides) Uint64(key string) (uint64, bool) {
	v, ok := o[key]
	return v, ok
}

// Int looks up key as an int, returning (value, true) if present.
func (o Overrides) Int(key string) (int, bool) {
	v, ok := o[key]
	return int(v), ok
}
