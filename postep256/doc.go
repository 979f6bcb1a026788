// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package postep256 interfaces with the PoLabs PoStep256 stepper motor
// controller via I²C.
//
// Each method maps to a single register on the controller. Setters validate
// their argument against the documented range before touching the bus, so an
// invalid value never results in an I²C transaction. Bus errors are returned
// as reported by the i2c.Bus and are never retried.
//
// The PoStep256 must be in ModeAuto for SetRequestedSpeed and
// SetInvertDirection to take effect. The driver doesn't check this for you;
// read DriverMode() if in doubt.
//
// # More Details
//
// The I²C address and the position control and button modes are configured
// with the PoStep USB utility. See the "PoStep User Manual" for the register
// reference.
//
// # Product Page
//
// https://www.poscope.com/product/postep256/
package postep256
