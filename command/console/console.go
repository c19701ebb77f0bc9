/*
 * frost - Interactive stepping console.
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

// Package console implements an optional interactive stepping console,
// dispatched through a small fixed command table the way the original
// operator console dispatched attach/detach/show.
package console

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/suhaskvittal/frost/emu/core"
	"github.com/suhaskvittal/frost/emu/stats"
)

type cmd struct {
	name    string
	min     int
	process func(sim *core.Sim, args []string) (quit bool, err error)
}

var cmdList = []cmd{
	{"step", 2, cmdStep},
	{"run", 1, cmdRun},
	{"stats", 2, cmdStats},
	{"quit", 1, cmdQuit},
}

func cmdStep(sim *core.Sim, args []string) (bool, error) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("bad cycle count %q", args[0])
		}
		n = v
	}
	for i := 0; i < n && !sim.AllDone(); i++ {
		sim.Tick()
	}
	fmt.Printf("cycle %d\n", sim.GLCycle)
	return false, nil
}

func cmdRun(sim *core.Sim, _ []string) (bool, error) {
	for !sim.AllDone() {
		sim.Tick()
	}
	fmt.Printf("cycle %d (trace complete)\n", sim.GLCycle)
	return false, nil
}

func cmdStats(sim *core.Sim, _ []string) (bool, error) {
	stats.Write(rawStdout{}, sim.Report())
	return false, nil
}

func cmdQuit(_ *core.Sim, _ []string) (bool, error) { return true, nil }

type rawStdout struct{}

func (rawStdout) Write(p []byte) (int, error) { return fmt.Print(string(p)) }

// ProcessCommand parses one line of operator input, matching the first
// word against cmdList by prefix (so "st 10" matches "step"), down to the
// command's minimum unambiguous length.
func ProcessCommand(line string, sim *core.Sim) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	word := strings.ToLower(fields[0])
	for _, c := range cmdList {
		if len(word) >= c.min && strings.HasPrefix(c.name, word) {
			return c.process(sim, fields[1:])
		}
	}
	return false, fmt.Errorf("unknown command: %s", word)
}

// CompleteCmd implements liner's tab-completion callback.
func CompleteCmd(line string) []string {
	var out []string
	for _, c := range cmdList {
		if strings.HasPrefix(c.name, strings.ToLower(line)) {
			out = append(out, c.name)
		}
	}
	return out
}

// Run drives the stepping console against sim until the operator quits
// or aborts with Ctrl-C.
func Run(sim *core.Sim) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(line string) []string { return CompleteCmd(line) })

	for {
		command, err := line.Prompt("frost> ")
		if err == nil {
			line.AppendHistory(command)
			quit, perr := ProcessCommand(command, sim)
			if perr != nil {
				fmt.Println("Error: " + perr.Error())
			}
			if quit {
				return
			}
			continue
		}

		if errors.Is(err, liner.ErrPromptAborted) {
			return
		}
		slog.Error("error reading line: " + err.Error())
		return
	}
}
