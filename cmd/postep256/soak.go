// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"log"

	"github.com/GermanBionicSystems/postep/postep256"
)

// soakStats summarizes a soak run.
type soakStats struct {
	Iterations int
	Failures   int
}

// soak repeatedly starts and stops the motor, checking after each step that
// the driver did what it was told. Failed checks are logged and counted but
// don't end the run; it stops when ctx is done or after cfg.Iterations.
func soak(ctx context.Context, d *postep256.Dev, cfg *SoakConfig, l *log.Logger, wait sleeper) (soakStats, error) {
	var st soakStats
	fail := func(format string, v ...any) {
		st.Failures++
		l.Printf("ERROR "+format, v...)
	}
	invert := true

	// Leave the motor asleep, however the loop ends.
	defer func() {
		if err := d.SetRunSleepMode(postep256.DriverSleep); err != nil {
			l.Printf("ERROR SetRunSleepMode(Sleep) failed: %v", err)
		}
	}()
	if err := d.SetRunSleepMode(postep256.DriverSleep); err != nil {
		fail("SetRunSleepMode(Sleep) failed: %v", err)
	}

	for cfg.Iterations == 0 || st.Iterations < cfg.Iterations {
		if ctx.Err() != nil {
			break
		}
		st.Iterations++
		l.Printf("iteration %d: motor run", st.Iterations)

		mode, err := d.DriverMode()
		if err != nil {
			fail("DriverMode failed: %v", err)
		} else {
			l.Printf("DriverMode: %s", mode)
		}
		if mode != postep256.ModeAuto {
			if err := switchToAuto(d); err != nil {
				fail("SetDriverMode(Auto) failed: %v", err)
			}
		}

		if err := d.SetRequestedSpeed(cfg.Speed); err != nil {
			fail("SetRequestedSpeed failed: %v", err)
		}
		if got, err := d.RequestedSpeed(); err != nil {
			fail("RequestedSpeed failed: %v", err)
		} else if !sameSpeed(got, cfg.Speed) {
			fail("RequestedSpeed is %d, set to %d", got, cfg.Speed)
		}

		if err := d.SetInvertDirection(invert); err != nil {
			fail("SetInvertDirection failed: %v", err)
		}
		if got, err := d.InvertDirection(); err != nil {
			fail("InvertDirection failed: %v", err)
		} else if got != invert {
			fail("InvertDirection is %t, set to %t", got, invert)
		}

		if err := d.SetRunSleepMode(postep256.DriverRun); err != nil {
			fail("SetRunSleepMode(Run) failed: %v", err)
		}
		if ok, err := pollSpeed(ctx, d, cfg, wait, func(v int16) bool { return v != 0 }); err != nil {
			return st, ignoreCanceled(err)
		} else if !ok {
			fail("motor isn't running")
		} else {
			l.Printf("motor is running")
		}
		invert = !invert

		if err := wait(ctx, cfg.Interval); err != nil {
			return st, ignoreCanceled(err)
		}

		l.Printf("iteration %d: motor stop", st.Iterations)
		if err := d.SetRunSleepMode(postep256.DriverSleep); err != nil {
			fail("SetRunSleepMode(Sleep) failed: %v", err)
		}
		if ok, err := pollSpeed(ctx, d, cfg, wait, func(v int16) bool { return v == 0 }); err != nil {
			return st, ignoreCanceled(err)
		} else if !ok {
			fail("motor didn't stop")
		} else {
			l.Printf("motor stopped")
		}

		if err := wait(ctx, cfg.Interval); err != nil {
			return st, ignoreCanceled(err)
		}
	}
	return st, nil
}

// switchToAuto stops the motor and clears the position before changing
// modes, as the driver requires.
func switchToAuto(d *postep256.Dev) error {
	if err := d.Stop(); err != nil {
		return err
	}
	if err := d.SetZero(); err != nil {
		return err
	}
	return d.SetDriverMode(postep256.ModeAuto)
}

// pollSpeed reads the current speed up to cfg.Polls times until ok accepts
// it. Read errors count as a miss.
func pollSpeed(ctx context.Context, d *postep256.Dev, cfg *SoakConfig, wait sleeper, ok func(int16) bool) (bool, error) {
	for i := 0; i < cfg.Polls; i++ {
		if v, err := d.CurrentSpeed(); err == nil && ok(v) {
			return true, nil
		}
		if err := wait(ctx, cfg.Poll); err != nil {
			return false, err
		}
	}
	return false, nil
}

// sameSpeed reports whether a requested speed read back from the driver
// matches want. The driver may report it negated when the direction is
// inverted.
func sameSpeed(got, want uint16) bool {
	return got == want || uint16(-int16(got)) == want
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
