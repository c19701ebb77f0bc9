/*
 * frost - Main process.
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

package main

import (
	"log/slog"
	"os"
	"path/filepath"

	getopt "github.com/pborman/getopt/v2"

	"github.com/suhaskvittal/frost/command/console"
	"github.com/suhaskvittal/frost/config/simconfig"
	"github.com/suhaskvittal/frost/emu/core"
	"github.com/suhaskvittal/frost/emu/dram"
	"github.com/suhaskvittal/frost/emu/stats"
	"github.com/suhaskvittal/frost/emu/trace"
	"github.com/suhaskvittal/frost/util/debug"
	"github.com/suhaskvittal/frost/util/logger"
)

var Logger *slog.Logger

func defaultConfig() core.Config {
	return core.Config{
		NumCores: 1,
		L1I:      core.CacheGeometry{Sets: 64, Ways: 8, MSHRSize: 8, HitLatency: 4, MissLatency: 1, ReadCap: 16, WriteCap: 16, PrefetchCap: 8, NumRWPorts: 2},
		L1D:      core.CacheGeometry{Sets: 64, Ways: 8, MSHRSize: 16, HitLatency: 5, MissLatency: 1, ReadCap: 16, WriteCap: 16, PrefetchCap: 8, NumRWPorts: 2},
		L2:       core.CacheGeometry{Sets: 512, Ways: 8, MSHRSize: 32, HitLatency: 12, MissLatency: 1, ReadCap: 32, WriteCap: 32, PrefetchCap: 16, NumRWPorts: 1},
		LLC:      core.CacheGeometry{Sets: 2048, Ways: 16, MSHRSize: 64, HitLatency: 36, MissLatency: 1, ReadCap: 64, WriteCap: 64, PrefetchCap: 32, NumRWPorts: 1},

		DRAMChannels:        2,
		DRAMBanksPerChannel: 16,
		DRAMPolicy:          dram.FRFCFS,
		DRAMPagePolicy:      dram.PageOpen,
		DRAMAddrMap:         dram.MapSkylake,
		DRAMClockRatio:      0.5,

		FramesPerCore: 1 << 18,
		Seed:          1,
	}
}

func applyOverrides(cfg *core.Config, ov simconfig.Overrides) {
	apply := func(geom *core.CacheGeometry, prefix string) {
		if v, ok := ov.Int(prefix + ".sets"); ok {
			geom.Sets = v
		}
		if v, ok := ov.Int(prefix + ".ways"); ok {
			geom.Ways = v
		}
		if v, ok := ov.Uint64(prefix + ".hit_latency"); ok {
			geom.HitLatency = v
		}
		if v, ok := ov.Int(prefix + ".mshr"); ok {
			geom.MSHRSize = v
		}
		if v, ok := ov.Int(prefix + ".num_ports"); ok {
			geom.NumRWPorts = v
		}
	}
	apply(&cfg.L1I, "l1i")
	apply(&cfg.L1D, "l1d")
	apply(&cfg.L2, "l2")
	apply(&cfg.LLC, "llc")
	if v, ok := ov.Int("dram.channels"); ok {
		cfg.DRAMChannels = v
	}
	if v, ok := ov.Int("dram.banks"); ok {
		cfg.DRAMBanksPerChannel = v
	}
}

func main() {
	optWarmup := getopt.Uint64Long("warmup", 'w', 10_000_000, "Warmup instruction count (added to --sim; simulated and counted like measured instructions)")
	optSim := getopt.Uint64Long("sim", 's', 10_000_000, "Measured instruction count")
	optConfig := getopt.StringLong("config", 'c', "", "Cache/DRAM geometry override file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optInteractive := getopt.BoolLong("interactive", 'i', "Drop into a stepping console after load")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.SetParameters("trace-file")
	getopt.Parse()

	args := getopt.Args()
	if *optHelp || len(args) < 1 {
		getopt.Usage()
		os.Exit(1)
	}
	tracePath := args[0]

	var file *os.File
	if *optLogFile != "" {
		var err error
		file, err = os.Create(*optLogFile)
		if err != nil {
			os.Stderr.WriteString("frost: cannot create log file: " + err.Error() + "\n")
			os.Exit(1)
		}
	} else {
		file, _ = os.Create(filepath.Base(tracePath) + ".log")
	}
	debug.SetFile(file)
	debug.SetMask(0)

	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel}, false, filepath.Base(tracePath)))
	slog.SetDefault(Logger)

	Logger.Info("frost started", "trace", tracePath, "warmup", *optWarmup, "sim", *optSim)

	cfg := defaultConfig()
	if *optConfig != "" {
		ov, err := simconfig.Load(*optConfig)
		if err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
		applyOverrides(&cfg, ov)
	}

	reader, err := trace.Open(tracePath, trace.Champsim)
	if err != nil {
		Logger.Error(err.Error())
		os.Exit(1)
	}
	defer reader.Close()

	sim := core.NewSim(cfg, []*trace.Reader{reader})

	if *optInteractive {
		console.Run(sim)
	}

	target := *optWarmup + *optSim
	for !sim.AllDone() && !allRetired(sim, target) {
		sim.Tick()
	}

	stats.Write(os.Stdout, sim.Report())
	Logger.Info("frost finished", "cycles", sim.GLCycle)
}

func allRetired(sim *core.Sim, target uint64) bool {
	var total uint64
	for _, c := range sim.Cores {
		total += c.Retired
	}
	return total >= target
}
