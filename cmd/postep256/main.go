// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// postep256 controls a PoStep256 stepper motor driver over I²C.
//
// Usage:
//
//	postep256 [flags] info
//	postep256 [flags] run
//	postep256 [flags] soak
//	postep256 [flags] set-address <new>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GermanBionicSystems/postep/postep256"
	"github.com/GermanBionicSystems/postep/postep256/postep256test"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config file")
	busName := flag.String("bus", "", "I²C bus to use")
	addr := flag.Uint("addr", 0, "I²C address of the driver (default 0x0B)")
	sim := flag.Bool("sim", false, "use a simulated driver instead of hardware")
	noColor := flag.Bool("nocolor", false, "disable ANSI colors")
	speed := flag.Uint("speed", 0, "run: requested speed in steps/s")
	invert := flag.Bool("invert", false, "run: invert direction")
	duration := flag.Duration("duration", 0, "run: how long to turn")
	logFile := flag.String("log", "", "soak: log to this file instead of stderr")
	iterations := flag.Int("n", 0, "soak: number of iterations, 0 until interrupted")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: postep256 [flags] info|run|soak|set-address <addr>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log.SetOutput(colorable.NewColorableStderr())
	log.SetFlags(log.Ldate | log.Ltime)
	if *verbose {
		log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	// Only flags given on the command line override the config.
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bus":
			cfg.Bus = *busName
		case "addr":
			a, err := flagAddr(*addr)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Addr = a
		case "sim":
			cfg.Sim = *sim
		case "nocolor":
			cfg.NoColor = *noColor
		case "speed":
			v, err := flagSpeed(*speed)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Speed = v
		case "invert":
			cfg.Invert = *invert
		case "duration":
			cfg.Duration = *duration
		case "log":
			cfg.Soak.LogFile = *logFile
		case "n":
			cfg.Soak.Iterations = *iterations
		}
	})
	if flagErr != nil {
		log.Fatalf("invalid flag: %v", flagErr)
	}
	if err := cfg.validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := mainImpl(ctx, cfg, flag.Args()); err != nil {
		log.Fatalf("postep256: %v", err)
	}
}

func mainImpl(ctx context.Context, cfg *Config, args []string) error {
	bus, wait, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer bus.Close()

	d, err := postep256.NewI2C(bus, cfg.Addr)
	if err != nil {
		return err
	}
	log.Printf("found %s on %s", d, bus)

	var out io.Writer = colorable.NewColorableStdout()
	if cfg.NoColor {
		out = colorable.NewNonColorable(os.Stdout)
	}

	switch cmd := args[0]; cmd {
	case "info":
		return info(out, d, ansi256.Default)
	case "run":
		return ignoreCanceled(run(ctx, d, cfg, wait))
	case "soak":
		l, closeLog, err := soakLogger(cfg.Soak.LogFile)
		if err != nil {
			return err
		}
		defer closeLog()
		st, err := soak(ctx, d, &cfg.Soak, l, wait)
		log.Printf("soak: %d iterations, %d failures", st.Iterations, st.Failures)
		if err == nil && st.Failures != 0 {
			err = fmt.Errorf("soak: %d failures", st.Failures)
		}
		return err
	case "set-address":
		if len(args) != 2 {
			return errors.New("set-address requires the new address")
		}
		return setAddress(d, args[1])
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// openBus opens the configured I²C bus, or a simulated driver. The returned
// sleeper advances the simulated motor instead of waiting.
func openBus(cfg *Config) (i2c.BusCloser, sleeper, error) {
	if cfg.Sim {
		s := postep256test.New(cfg.Addr)
		return s, func(ctx context.Context, d time.Duration) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.Advance(d)
			return nil
		}, nil
	}
	if _, err := host.Init(); err != nil {
		return nil, nil, err
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open I²C: %w", err)
	}
	return bus, sleep, nil
}

// soakLogger returns the logger for the soak command, writing to path if set.
func soakLogger(path string) (*log.Logger, func() error, error) {
	if path == "" {
		return log.Default(), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return log.New(f, "", log.Ldate|log.Ltime), f.Close, nil
}
