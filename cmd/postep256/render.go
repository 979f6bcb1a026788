// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"image/color"
	"strings"

	"github.com/maruel/ansi256"
)

var (
	colorHigh  = color.NRGBA{R: 0x00, G: 0xD0, B: 0x00, A: 0xFF}
	colorLow   = color.NRGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xFF}
	colorFault = color.NRGBA{R: 0xE0, G: 0x00, B: 0x00, A: 0xFF}
)

// bitmap renders the bits of v as a row of colored blocks, MSB first.
func bitmap(p *ansi256.Palette, v uint8, set color.NRGBA) string {
	var b strings.Builder
	for i := 7; i >= 0; i-- {
		c := colorLow
		if v&(1<<uint(i)) != 0 {
			c = set
		}
		b.WriteString(p.Block(c))
	}
	b.WriteString("\033[0m")
	return b.String()
}
