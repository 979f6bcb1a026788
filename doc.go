// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package postep is a container for the PoStep256 stepper motor driver and
// its tooling.
//
// The driver lives in package postep256, an in-memory driver for tests in
// postep256/postep256test, and the command line tool in cmd/postep256.
package postep
