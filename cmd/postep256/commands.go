// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/GermanBionicSystems/postep/postep256"
	"github.com/maruel/ansi256"
)

// sleeper waits for d, or until ctx is done.
type sleeper func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// info prints everything the driver reports about itself.
func info(w io.Writer, d *postep256.Dev, p *ansi256.Palette) error {
	i, err := d.Info()
	if err != nil {
		return err
	}
	v, err := d.Voltage()
	if err != nil {
		return err
	}
	temp, err := d.Temperature()
	if err != nil {
		return err
	}
	mode, err := d.DriverMode()
	if err != nil {
		return err
	}
	step, err := d.StepMode()
	if err != nil {
		return err
	}
	maxSpeed, err := d.MaxSpeed()
	if err != nil {
		return err
	}
	requested, err := d.RequestedSpeed()
	if err != nil {
		return err
	}
	current, err := d.CurrentSpeed()
	if err != nil {
		return err
	}
	invert, err := d.InvertDirection()
	if err != nil {
		return err
	}
	position, err := d.Position()
	if err != nil {
		return err
	}
	fullScale, err := d.CurrentFullScale()
	if err != nil {
		return err
	}
	idle, err := d.CurrentIdle()
	if err != nil {
		return err
	}
	pins, err := d.PinStatuses()
	if err != nil {
		return err
	}
	faults, err := d.Faults()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w,
		"%s\n"+
			"  info:         %s\n"+
			"  voltage:      %s\n"+
			"  temperature:  %s\n"+
			"  mode:         %s\n"+
			"  step mode:    %d\n"+
			"  max speed:    %d steps/s\n"+
			"  requested:    %d steps/s (inverted: %t)\n"+
			"  speed:        %d steps/s\n"+
			"  position:     %d\n"+
			"  current:      %s (idle %s)\n"+
			"  pins:         %s %08b\n"+
			"  faults:       %s %08b\n",
		d, i, v, temp, mode, step, maxSpeed, requested, invert, current, position,
		fullScale, idle,
		bitmap(p, pins, colorHigh), pins,
		bitmap(p, uint8(faults), colorFault), uint8(faults))
	return err
}

// run is the basic usage sequence from the PoStep256 manual: configure auto
// mode, turn for a while and report the position.
func run(ctx context.Context, d *postep256.Dev, cfg *Config, wait sleeper) error {
	// The mode can only be changed with the motor stopped.
	if err := d.Stop(); err != nil {
		return err
	}
	if err := d.SetZero(); err != nil {
		return err
	}
	if err := d.SetDriverMode(postep256.ModeAuto); err != nil {
		return err
	}
	if err := d.SetRunSleepMode(postep256.DriverSleep); err != nil {
		return err
	}
	if err := d.SetRequestedSpeed(cfg.Speed); err != nil {
		return err
	}
	if err := d.SetInvertDirection(cfg.Invert); err != nil {
		return err
	}
	if err := d.SetRunSleepMode(postep256.DriverRun); err != nil {
		return err
	}
	log.Printf("%s: running at %d steps/s for %s", d, cfg.Speed, cfg.Duration)

	werr := wait(ctx, cfg.Duration)
	// Always put the driver back to sleep, even when interrupted.
	if err := d.SetRunSleepMode(postep256.DriverSleep); err != nil {
		return err
	}
	if werr != nil {
		return werr
	}
	position, err := d.Position()
	if err != nil {
		return err
	}
	log.Printf("%s: motor is at position %d", d, position)
	return nil
}

// setAddress changes the I²C address of the driver and stores it.
func setAddress(d *postep256.Dev, arg string) error {
	addr, err := strconv.ParseUint(arg, 0, 16)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", arg, err)
	}
	if err := d.SetAddress(uint16(addr)); err != nil {
		return err
	}
	log.Printf("%s: address changed to 0x%02X", d, addr)
	return nil
}
