/*
 * ani-core - Demo front end: load a machine description and run it
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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/monocasa/ani-core-go/bus"
	"github.com/monocasa/ani-core-go/config"
	"github.com/monocasa/ani-core-go/iisa"
	"github.com/monocasa/ani-core-go/internal/logger"
	"github.com/monocasa/ani-core-go/mips"
	"github.com/monocasa/ani-core-go/system"
)

var Logger *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "ani-core.cfg", "Machine description file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Echo debug-level log records to stderr")
	optSteps := getopt.StringLong("steps", 's', "1048576", "Maximum instructions to execute before stopping")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	maxSteps, err := strconv.ParseUint(*optSteps, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ani-core-demo: --steps: %v\n", err)
		os.Exit(1)
	}

	var file *os.File
	if *optLogFile != "" {
		var err error
		file, err = os.Create(*optLogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ani-core-demo: %v\n", err)
			os.Exit(1)
		}
	} else {
		file = os.Stderr
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel}, *optDebug))
	slog.SetDefault(Logger)

	Logger.Info("ani-core-demo started")

	cfg, err := config.Load(*optConfig)
	if err != nil {
		Logger.Error("loading machine description", "path", *optConfig, "error", err)
		os.Exit(1)
	}

	sys := system.New()
	defer sys.Shutdown()

	if err := buildMachine(sys, cfg); err != nil {
		Logger.Error("building machine", "error", err)
		os.Exit(1)
	}

	cookies, err := registerCpus(sys, cfg)
	if err != nil {
		Logger.Error("registering cpus", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go runCpus(sys, cfg, cookies, maxSteps, done)

	select {
	case <-sigChan:
		Logger.Info("got quit signal")
	case <-done:
		Logger.Info("run completed")
	}

	Logger.Info("shutting down")
}

// buildMachine installs every map and load directive from cfg onto sys,
// in file order.
func buildMachine(sys *system.System, cfg *config.Config) error {
	for _, m := range cfg.Maps {
		if err := sys.AddMappableRange(parseProt(m.Prot), m.Base, m.Size); err != nil {
			return fmt.Errorf("map %s: %w", m.Name, err)
		}
	}
	for _, l := range cfg.Loads {
		data, err := os.ReadFile(l.File)
		if err != nil {
			return fmt.Errorf("load %s: %w", l.Name, err)
		}
		if err := sys.SetRange(data, l.Base); err != nil {
			return fmt.Errorf("load %s: %w", l.Name, err)
		}
	}
	return nil
}

func parseProt(spec string) bus.Prot {
	var p bus.Prot
	if strings.Contains(spec, "r") {
		p |= bus.ProtRead
	}
	if strings.Contains(spec, "w") {
		p |= bus.ProtWrite
	}
	if strings.Contains(spec, "x") {
		p |= bus.ProtExec
	}
	return p
}

// registerCpus registers every cpu directive from cfg and sets its
// initial PC, returning the cookies in file order.
func registerCpus(sys *system.System, cfg *config.Config) ([]system.CpuCookie, error) {
	cookies := make([]system.CpuCookie, 0, len(cfg.Cpus))
	for _, c := range cfg.Cpus {
		arch, err := parseMipsArch(c.Arch)
		if err != nil {
			return nil, fmt.Errorf("cpu %s: %w", c.Name, err)
		}
		opts := system.CpuEndianBig
		if c.Endian == "little" {
			opts = system.CpuEndianLittle
		}

		cookie, err := sys.RegisterCpu(opts, system.MipsArch(arch))
		if err != nil {
			return nil, fmt.Errorf("cpu %s: %w", c.Name, err)
		}
		if err := sys.SetReg(cookie, iisa.Pc(), c.Pc); err != nil {
			return nil, fmt.Errorf("cpu %s: setting pc: %w", c.Name, err)
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}

func parseMipsArch(name string) (mips.Arch, error) {
	switch strings.ToLower(name) {
	case "r2000":
		return mips.R2000, nil
	case "sys161":
		return mips.Sys161, nil
	case "vr4300":
		return mips.VR4300, nil
	default:
		return 0, fmt.Errorf("unknown mips variant %q", name)
	}
}

// runCpus drives every registered CPU forward one bounded Execute call
// per loop, stopping at maxSteps worth of one-instruction windows or at
// the first error, then closes done.
func runCpus(sys *system.System, cfg *config.Config, cookies []system.CpuCookie, maxSteps uint64, done chan<- struct{}) {
	defer close(done)

	for i, cookie := range cookies {
		name := cfg.Cpus[i].Name
		steps := uint64(0)
		for steps < maxSteps {
			pc, err := sys.GetReg(cookie, iisa.Pc())
			if err != nil {
				Logger.Error("reading pc", "cpu", name, "error", err)
				return
			}

			reason, err := sys.Execute(cookie, pc, pc+4)
			if err != nil {
				Logger.Error("execute stopped with an error", "cpu", name, "pc", pc, "error", err)
				return
			}
			Logger.Debug("execute returned", "cpu", name, "reason", reason.Kind, "pc", reason.Pc)
			steps++
		}
		Logger.Info("cpu reached step limit", "cpu", name, "steps", steps)
	}
}
