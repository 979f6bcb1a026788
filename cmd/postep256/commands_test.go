// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/GermanBionicSystems/postep/postep256"
	"github.com/GermanBionicSystems/postep/postep256/postep256test"
	"github.com/maruel/ansi256"
)

func newSimDev(t *testing.T) (*postep256test.Sim, *postep256.Dev, sleeper) {
	t.Helper()
	cfg := defaultConfig()
	cfg.Sim = true
	bus, wait, err := openBus(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	d, err := postep256.NewI2C(bus, cfg.Addr)
	if err != nil {
		t.Fatal(err)
	}
	return bus.(*postep256test.Sim), d, wait
}

func TestBitmap(t *testing.T) {
	p := ansi256.Default
	var want strings.Builder
	for _, c := range []bool{true, false, false, false, false, false, true, true} {
		if c {
			want.WriteString(p.Block(colorHigh))
		} else {
			want.WriteString(p.Block(colorLow))
		}
	}
	want.WriteString("\033[0m")
	if got := bitmap(p, 0x83, colorHigh); got != want.String() {
		t.Fatalf("wanted: %q, got: %q", want.String(), got)
	}
}

func TestBitmapFaults(t *testing.T) {
	p := ansi256.Default
	got := bitmap(p, 0x01, colorFault)
	want := strings.Repeat(p.Block(colorLow), 7) + p.Block(colorFault) + "\033[0m"
	if got != want {
		t.Fatalf("wanted: %q, got: %q", want, got)
	}
}

func TestInfo(t *testing.T) {
	s, d, _ := newSimDev(t)
	s.Faults = 0x01
	var buf bytes.Buffer
	if err := info(&buf, d, ansi256.Default); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"PoStep256{0x0B}", "fw=1.2", "mode:         Default", "faults:", "00000001"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("missing %q in:\n%s", want, buf.String())
		}
	}
}

func TestRun(t *testing.T) {
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)
	s, d, wait := newSimDev(t)
	cfg := defaultConfig()
	cfg.Speed = 500
	cfg.Invert = true
	if err := run(context.Background(), d, &cfg, wait); err != nil {
		t.Fatal(err)
	}
	if s.Position != -1000 {
		t.Fatalf("wanted position -1000, got %d", s.Position)
	}
	if s.Running {
		t.Fatal("driver left running")
	}
	if s.Mode != byte(postep256.ModeAuto) {
		t.Fatalf("wanted auto mode, got 0x%02X", s.Mode)
	}
}

func TestRunCanceled(t *testing.T) {
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)
	s, d, _ := newSimDev(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := defaultConfig()
	if err := run(ctx, d, &cfg, sleep); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected error: %v, got: %v", context.Canceled, err)
	}
	if s.Running {
		t.Fatal("driver left running")
	}
}

func TestSetAddress(t *testing.T) {
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)
	s, d, _ := newSimDev(t)
	if err := setAddress(d, "0x20"); err != nil {
		t.Fatal(err)
	}
	if s.Addr != 0x20 {
		t.Fatalf("wanted address 0x20, got 0x%02X", s.Addr)
	}
	if err := setAddress(d, "zz"); err == nil {
		t.Fatal("expected error")
	}
	if err := setAddress(d, "0x80"); !errors.Is(err, postep256.ErrInvalidArgument) {
		t.Fatalf("expected error: %v, got: %v", postep256.ErrInvalidArgument, err)
	}
}

func soakConfig() *SoakConfig {
	cfg := defaultConfig().Soak
	cfg.Interval = time.Second
	cfg.Iterations = 3
	return &cfg
}

func TestSoak(t *testing.T) {
	s, d, wait := newSimDev(t)
	var out bytes.Buffer
	st, err := soak(context.Background(), d, soakConfig(), log.New(&out, "", 0), wait)
	if err != nil {
		t.Fatal(err)
	}
	if st.Iterations != 3 || st.Failures != 0 {
		t.Fatalf("unexpected stats %+v:\n%s", st, out.String())
	}
	if s.Running {
		t.Fatal("driver left running")
	}
	if s.Mode != byte(postep256.ModeAuto) {
		t.Fatalf("wanted auto mode, got 0x%02X", s.Mode)
	}
	for _, want := range []string{"motor is running", "DriverMode: Auto"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in log:\n%s", want, out.String())
		}
	}
}

func TestSoakBusFailure(t *testing.T) {
	s, d, wait := newSimDev(t)
	s.Err = errors.New("i2c: nack")
	var out bytes.Buffer
	cfg := soakConfig()
	cfg.Iterations = 1
	st, err := soak(context.Background(), d, cfg, log.New(&out, "", 0), wait)
	if err != nil {
		t.Fatal(err)
	}
	if st.Failures == 0 {
		t.Fatalf("expected failures:\n%s", out.String())
	}
	for _, want := range []string{"motor isn't running", "SetRequestedSpeed failed", "RequestedSpeed failed", "SetRunSleepMode(Run) failed"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in log:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "_") {
		t.Fatalf("log uses snake_case names:\n%s", out.String())
	}
}

func TestSoakCanceled(t *testing.T) {
	s, d, wait := newSimDev(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := soakConfig()
	cfg.Iterations = 0
	st, err := soak(ctx, d, cfg, log.New(io.Discard, "", 0), wait)
	if err != nil {
		t.Fatal(err)
	}
	if st.Iterations != 0 {
		t.Fatalf("wanted no iteration, got %d", st.Iterations)
	}
	if s.Running {
		t.Fatal("driver left running")
	}
}

func TestSameSpeed(t *testing.T) {
	for _, test := range []struct {
		got, want uint16
		same      bool
	}{
		{15360, 15360, true},
		{0xC400, 15360, true}, // -15360
		{0xFC18, 1000, true},  // -1000
		{postep256.MaxSpeed, postep256.MaxSpeed, true},
		{0, 0, true},
		{15359, 15360, false},
		{0xFC17, 1000, false},
	} {
		if got := sameSpeed(test.got, test.want); got != test.same {
			t.Errorf("sameSpeed(%d, %d) = %t", test.got, test.want, got)
		}
	}
}
