// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package postep256test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"
)

func TestLoopback(t *testing.T) {
	s := New(0x0B)
	if err := s.Tx(0x0B, []byte{0x01, 0x91, 0x92, 0x93, 0x94}, nil); err != nil {
		t.Fatal(err)
	}
	r := make([]byte, 5)
	if err := s.Tx(0x0B, []byte{0x01}, r); err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x01, 0x91, 0x92, 0x93, 0x94}; !bytes.Equal(r, want) {
		t.Fatalf("wanted: %#v, got: %#v", want, r)
	}
	if len(s.Ops) != 2 {
		t.Fatalf("expected 2 recorded transactions, got %d", len(s.Ops))
	}
}

func TestWrongAddress(t *testing.T) {
	s := New(0x0B)
	if err := s.Tx(0x0C, []byte{0x5F}, nil); err == nil {
		t.Fatal("expected error")
	}
	if len(s.Ops) != 0 {
		t.Fatalf("expected no recorded transaction, got %d", len(s.Ops))
	}
}

func TestInvalidRegister(t *testing.T) {
	s := New(0x0B)
	if err := s.Tx(0x0B, []byte{0x61}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestInjectedError(t *testing.T) {
	errBus := errors.New("bus")
	s := New(0x0B)
	s.Err = errBus
	if err := s.Tx(0x0B, []byte{0x54, 0xE8, 0x03}, nil); err != errBus {
		t.Fatalf("expected error: %v, got: %v", errBus, err)
	}
	if got := s.Setting(0x45); !bytes.Equal(got, []byte{0, 0}) {
		t.Fatalf("requested speed changed to %#v", got)
	}
}

func TestSetAddress(t *testing.T) {
	s := New(0x0B)
	if err := s.Tx(0x0B, []byte{0x04, 0x0B, 0x20}, nil); err != nil {
		t.Fatal(err)
	}
	if s.Addr != 0x20 {
		t.Fatalf("wanted address 0x20, got 0x%02X", s.Addr)
	}
	if err := s.Tx(0x0B, []byte{0x5F}, nil); err == nil {
		t.Fatal("expected old address to stop answering")
	}
}

func TestMotion(t *testing.T) {
	s := New(0x0B)
	for _, w := range [][]byte{
		{0x05, modeAuto},
		{0x54, 0x64, 0x00}, // 100 steps/s
		{0x03, runValue},
	} {
		if err := s.Tx(0x0B, w, nil); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 10; i++ {
		s.Advance(5 * time.Millisecond)
	}
	if s.Position != 5 {
		t.Fatalf("wanted position 5, got %d", s.Position)
	}

	r := make([]byte, 2)
	if err := s.Tx(0x0B, []byte{0x44}, r); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(r, []byte{0x64, 0x00}) {
		t.Fatalf("unexpected current speed %#v", r)
	}

	if err := s.Tx(0x0B, []byte{0x5F}, nil); err != nil {
		t.Fatal(err)
	}
	s.Advance(time.Second)
	if s.Position != 5 {
		t.Fatalf("motor moved after stop, position %d", s.Position)
	}
	if err := s.Tx(0x0B, []byte{0x5E}, nil); err != nil {
		t.Fatal(err)
	}
	if s.Position != 0 {
		t.Fatalf("wanted position 0, got %d", s.Position)
	}
}

func TestSetPositionNeedsPositionMode(t *testing.T) {
	s := New(0x0B)
	w := []byte{0x50, 0x10, 0x00, 0x00, 0x00}
	if err := s.Tx(0x0B, w, nil); err != nil {
		t.Fatal(err)
	}
	if s.Position != 0 {
		t.Fatalf("position set outside position mode: %d", s.Position)
	}
	s.Mode = modePositionControl
	if err := s.Tx(0x0B, w, nil); err != nil {
		t.Fatal(err)
	}
	if s.Position != 16 {
		t.Fatalf("wanted position 16, got %d", s.Position)
	}
}

func TestSensors(t *testing.T) {
	s := New(0x0B)
	s.Voltage = 12 * physic.Volt
	s.Temperature = physic.ZeroCelsius + 40*physic.Kelvin

	r := make([]byte, 2)
	if err := s.Tx(0x0B, []byte{0x10}, r); err != nil {
		t.Fatal(err)
	}
	// 12V / 72mV = 166.
	if !bytes.Equal(r, []byte{166, 0}) {
		t.Fatalf("unexpected voltage %#v", r)
	}
	if err := s.Tx(0x0B, []byte{0x11}, r); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(r, []byte{0x40, 0x01}) {
		t.Fatalf("unexpected temperature %#v", r)
	}
}

func TestSystemReset(t *testing.T) {
	s := New(0x0B)
	s.Faults = 0x03
	if err := s.Tx(0x0B, []byte{0x34, 100}, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Tx(0x0B, []byte{0x60}, nil); err != nil {
		t.Fatal(err)
	}
	if s.Faults != 0 {
		t.Fatalf("faults not cleared: %08b", s.Faults)
	}
	if got := s.Setting(0x24); !bytes.Equal(got, []byte{80}) {
		t.Fatalf("temperature limit not restored: %#v", got)
	}
}
