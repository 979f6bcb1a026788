// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package postep256

import (
	"bytes"
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// I2CAddr is the factory default I²C address of the PoStep256. It can be
// changed with the PoStep USB utility or SetAddress.
const I2CAddr uint16 = 0x0B

// Documented limits of the PoStep256.
const (
	// MaxSpeed is the highest speed setting, in steps per second.
	MaxSpeed uint16 = 60000
	// MaxAcceleration is the highest acceleration and deceleration setting,
	// in steps per second squared.
	MaxAcceleration uint16 = 50000
	// MaxCurrent is the highest coil current setting.
	MaxCurrent = 6 * physic.Ampere
	// MaxTemperatureLimit is the highest overheat threshold.
	MaxTemperatureLimit = physic.ZeroCelsius + 120*physic.Kelvin

	minAddr uint16 = 0x01
	maxAddr uint16 = 0x7F
)

var (
	// ErrInvalidArgument is returned when a value lies outside the documented
	// range of the target register. No I²C transaction is attempted.
	ErrInvalidArgument = errors.New("postep256: invalid argument")

	// ErrConnectionFailed is returned by NewI2C when the device doesn't
	// answer.
	ErrConnectionFailed = errors.New("postep256: failed to connect")

	// ErrLoopbackMismatch is returned when the loopback test reads back
	// different bytes than were written.
	ErrLoopbackMismatch = errors.New("postep256: loopback mismatch")
)

// RunState is the power state of the motor driver.
type RunState uint8

const (
	// DriverRun energizes the motor.
	DriverRun RunState = 0xDA
	// DriverSleep puts the driver to sleep. Use it when the motor isn't in
	// use.
	DriverSleep RunState = 0x0F
)

func (s RunState) String() string {
	switch s {
	case DriverRun:
		return "Run"
	case DriverSleep:
		return "Sleep"
	default:
		return fmt.Sprintf("RunState(0x%02X)", uint8(s))
	}
}

// Mode is the control mode of the driver.
type Mode uint8

const (
	// ModeDefault is the manual mode, where the motor is driven by the step
	// and direction inputs.
	ModeDefault Mode = 0x01
	// ModePositionControl drives the motor to the position set with
	// SetPosition. It can only be selected with the PoStep USB utility.
	ModePositionControl Mode = 0x04
	// ModeBinxButtons is position control driven by the input buttons. It can
	// only be selected with the PoStep USB utility.
	ModeBinxButtons Mode = 0x05
	// ModeAuto runs the motor at the requested speed while the driver is in
	// DriverRun.
	ModeAuto Mode = 0x06
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "Default"
	case ModePositionControl:
		return "PositionControl"
	case ModeBinxButtons:
		return "BinxButtons"
	case ModeAuto:
		return "Auto"
	default:
		return fmt.Sprintf("Mode(0x%02X)", uint8(m))
	}
}

// StepMode describes how many microsteps add up to one full step.
type StepMode uint8

const (
	StepModeFull         StepMode = 0
	StepModeHalf         StepMode = 1
	StepModeMicrostep4   StepMode = 2
	StepModeMicrostep8   StepMode = 3
	StepModeMicrostep16  StepMode = 4
	StepModeMicrostep32  StepMode = 5
	StepModeMicrostep64  StepMode = 6
	StepModeMicrostep128 StepMode = 7
	StepModeMicrostep256 StepMode = 8
)

// Fault is the fault bitmap returned by Faults(). Each set bit is an active
// fault.
type Fault uint8

// Has reports whether bit is set.
func (f Fault) Has(bit uint) bool {
	return f&(1<<bit) != 0
}

// Info is the identification block of the driver.
type Info struct {
	DriverID      uint8
	HardwareMajor uint8
	HardwareMinor uint8
	FirmwareMajor uint8
	FirmwareMinor uint8
}

func (i Info) String() string {
	return fmt.Sprintf("id=%d hw=%d.%d fw=%d.%d", i.DriverID, i.HardwareMajor, i.HardwareMinor, i.FirmwareMajor, i.FirmwareMinor)
}

// PWM configures both outputs when the PoStep256 runs two brushed DC motors.
// DC motor control mode must first be selected with the PoStep USB utility.
type PWM struct {
	Motor1Frequency uint8
	Motor2Frequency uint8
	// Duty cycles in both directions for each motor.
	Motor1DutyCW  uint8
	Motor1DutyCCW uint8
	Motor2DutyCW  uint8
	Motor2DutyCCW uint8
}

// Dev is a handle to a PoStep256 motor controller.
type Dev struct {
	c    conn.Conn
	addr uint16
}

// NewI2C returns an object that communicates with a PoStep256 over I²C.
//
// The connection is verified with a loopback test before returning.
func NewI2C(b i2c.Bus, addr uint16) (*Dev, error) {
	if addr < minAddr || addr > maxAddr {
		return nil, fmt.Errorf("%w: address 0x%02X", ErrInvalidArgument, addr)
	}
	d := &Dev{
		c:    &i2c.Dev{Bus: b, Addr: addr},
		addr: addr,
	}
	if err := d.Loopback(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return d, nil
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return fmt.Sprintf("PoStep256{0x%02X}", d.addr)
}

// Halt stops the motor.
//
// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return d.Stop()
}

// loopbackPattern is written to the loopback register by Loopback.
var loopbackPattern = []byte{0x91, 0x92, 0x93, 0x94}

// Loopback writes a test pattern to the driver and reads it back.
//
// The driver answers with the register offset followed by the pattern.
func (d *Dev) Loopback() error {
	if err := d.writeRegister(regLoopback, loopbackPattern...); err != nil {
		return err
	}
	b, err := d.readRegister(regLoopback, len(loopbackPattern)+1)
	if err != nil {
		return err
	}
	if !bytes.Equal(b[1:], loopbackPattern) {
		return fmt.Errorf("%w: got %#v", ErrLoopbackMismatch, b[1:])
	}
	return nil
}

// SetRunSleepMode energizes the motor with DriverRun or puts the driver to
// sleep with DriverSleep.
func (d *Dev) SetRunSleepMode(s RunState) error {
	if s != DriverRun && s != DriverSleep {
		return fmt.Errorf("%w: run state %s", ErrInvalidArgument, s)
	}
	return d.writeRegister(regRunSleep, byte(s))
}

// SetAddress changes the I²C address of the driver.
//
// The Dev keeps talking to the old address. Create a new Dev with NewI2C to
// reach the driver at its new address. The change is volatile until
// SaveSettings is called.
func (d *Dev) SetAddress(addr uint16) error {
	if addr < minAddr || addr > maxAddr {
		return fmt.Errorf("%w: address 0x%02X", ErrInvalidArgument, addr)
	}
	if addr == d.addr {
		return nil
	}
	return d.writeRegister(regAddress, byte(d.addr), byte(addr))
}

// SetDriverMode selects ModeDefault or ModeAuto.
//
// The other modes can only be selected with the PoStep USB utility. Send Stop
// and SetZero before changing modes while the motor turns.
func (d *Dev) SetDriverMode(m Mode) error {
	if m != ModeDefault && m != ModeAuto {
		return fmt.Errorf("%w: driver mode %s", ErrInvalidArgument, m)
	}
	return d.writeRegister(regDriverMode, byte(m))
}

// DriverMode reads the current control mode.
func (d *Dev) DriverMode() (Mode, error) {
	v, err := d.readUint8(regReadDriverMode)
	return Mode(v), err
}

// SetPWM sets both PWM outputs in DC motor control mode.
func (d *Dev) SetPWM(p PWM) error {
	return d.writeRegister(regPWM,
		p.Motor1Frequency, p.Motor2Frequency,
		p.Motor1DutyCW, p.Motor1DutyCCW,
		p.Motor2DutyCW, p.Motor2DutyCCW)
}

// Info reads the driver ID and the hardware and firmware versions.
func (d *Dev) Info() (Info, error) {
	b, err := d.readRegister(regInfo, 5)
	if err != nil {
		return Info{}, err
	}
	return Info{
		DriverID:      b[0],
		HardwareMajor: b[1],
		HardwareMinor: b[2],
		FirmwareMajor: b[3],
		FirmwareMinor: b[4],
	}, nil
}

// Voltage reads the supply voltage.
func (d *Dev) Voltage() (physic.ElectricPotential, error) {
	v, err := d.readUint16(regVoltage)
	if err != nil {
		return 0, err
	}
	return physic.ElectricPotential(int16(v)) * 72 * physic.MilliVolt, nil
}

// Temperature reads the driver temperature.
func (d *Dev) Temperature() (physic.Temperature, error) {
	v, err := d.readUint16(regTemperature)
	if err != nil {
		return 0, err
	}
	return physic.ZeroCelsius + physic.Temperature(int16(v))*125*physic.MilliKelvin, nil
}

// PinStatuses reads the input pins. Each bit is one pin, 1 meaning high.
func (d *Dev) PinStatuses() (uint8, error) {
	return d.readUint8(regPinStatus)
}

// DriverStatus reads the raw driver status register.
func (d *Dev) DriverStatus() (uint8, error) {
	return d.readUint8(regDriverStatus)
}

// Faults reads the fault bitmap.
func (d *Dev) Faults() (Fault, error) {
	v, err := d.readUint8(regFaults)
	return Fault(v), err
}

// ResetFaults clears all faults.
func (d *Dev) ResetFaults() error {
	return d.writeRegister(regResetFaults)
}

// SaveSettings stores the settings changed by the Set methods in EEPROM, so
// they survive a power cycle.
func (d *Dev) SaveSettings() error {
	return d.writeRegister(regSaveSettings)
}

func (d *Dev) setCurrent(reg register, c physic.ElectricCurrent) error {
	if c < 0 || c > MaxCurrent {
		return fmt.Errorf("%w: current %s", ErrInvalidArgument, c)
	}
	b := encodeCurrent(c)
	return d.writeRegister(reg, b[:]...)
}

func (d *Dev) readCurrent(reg register) (physic.ElectricCurrent, error) {
	b, err := d.readRegister(reg, 2)
	if err != nil {
		return 0, err
	}
	return decodeCurrent(b), nil
}

// SetCurrentFullScale sets the coil current while the motor moves.
//
// The value is rounded down to the resolution of the driver.
func (d *Dev) SetCurrentFullScale(c physic.ElectricCurrent) error {
	return d.setCurrent(regCurrentFullScale, c)
}

// CurrentFullScale reads the coil current used while the motor moves.
func (d *Dev) CurrentFullScale() (physic.ElectricCurrent, error) {
	return d.readCurrent(regReadCurrentFullScale)
}

// SetCurrentIdle sets the holding current while the motor is stopped.
func (d *Dev) SetCurrentIdle(c physic.ElectricCurrent) error {
	return d.setCurrent(regCurrentIdle, c)
}

// CurrentIdle reads the holding current.
func (d *Dev) CurrentIdle() (physic.ElectricCurrent, error) {
	return d.readCurrent(regReadCurrentIdle)
}

// SetCurrentOverheat sets the coil current used once the temperature limit
// is reached.
func (d *Dev) SetCurrentOverheat(c physic.ElectricCurrent) error {
	return d.setCurrent(regCurrentOverheat, c)
}

// CurrentOverheat reads the coil current used when overheated.
func (d *Dev) CurrentOverheat() (physic.ElectricCurrent, error) {
	return d.readCurrent(regReadCurrentOverheat)
}

// SetStepMode sets the microstepping resolution.
func (d *Dev) SetStepMode(m StepMode) error {
	if m > StepModeMicrostep256 {
		return fmt.Errorf("%w: step mode %d", ErrInvalidArgument, m)
	}
	return d.writeRegister(regStepMode, byte(m))
}

// StepMode reads the microstepping resolution.
func (d *Dev) StepMode() (StepMode, error) {
	v, err := d.readUint8(regReadStepMode)
	return StepMode(v & 0x0F), err
}

// SetTemperatureLimit sets the temperature above which the driver switches to
// the overheat current. It is truncated to a whole degree Celsius.
func (d *Dev) SetTemperatureLimit(t physic.Temperature) error {
	if t < physic.ZeroCelsius || t > MaxTemperatureLimit {
		return fmt.Errorf("%w: temperature limit %s", ErrInvalidArgument, t)
	}
	return d.writeRegister(regTemperatureLimit, byte((t-physic.ZeroCelsius)/physic.Kelvin))
}

// TemperatureLimit reads the overheat threshold.
func (d *Dev) TemperatureLimit() (physic.Temperature, error) {
	v, err := d.readUint8(regReadTemperatureLimit)
	if err != nil {
		return 0, err
	}
	return physic.ZeroCelsius + physic.Temperature(v)*physic.Kelvin, nil
}

// Position reads the motor position, in steps.
func (d *Dev) Position() (int32, error) {
	v, err := d.readUint32(regPosition)
	return int32(v), err
}

// SetPosition sets the target position, in steps.
//
// The driver only acts on it in ModePositionControl or ModeBinxButtons.
func (d *Dev) SetPosition(position int32) error {
	return d.writeUint32(regSetPosition, uint32(position))
}

func (d *Dev) setSpeed(reg register, v, limit uint16) error {
	if v > limit {
		return fmt.Errorf("%w: %d exceeds %d", ErrInvalidArgument, v, limit)
	}
	return d.writeUint16(reg, v)
}

// SetMaxSpeed sets the maximum speed, in steps per second.
func (d *Dev) SetMaxSpeed(speed uint16) error {
	return d.setSpeed(regMaxSpeed, speed, MaxSpeed)
}

// MaxSpeed reads the maximum speed, in steps per second.
func (d *Dev) MaxSpeed() (uint16, error) {
	return d.readUint16(regReadMaxSpeed)
}

// SetAcceleration sets the acceleration, in steps per second squared.
func (d *Dev) SetAcceleration(accel uint16) error {
	return d.setSpeed(regAcceleration, accel, MaxAcceleration)
}

// Acceleration reads the acceleration, in steps per second squared.
func (d *Dev) Acceleration() (uint16, error) {
	return d.readUint16(regReadAcceleration)
}

// SetDeceleration sets the deceleration, in steps per second squared.
func (d *Dev) SetDeceleration(decel uint16) error {
	return d.setSpeed(regDeceleration, decel, MaxAcceleration)
}

// Deceleration reads the deceleration, in steps per second squared.
func (d *Dev) Deceleration() (uint16, error) {
	return d.readUint16(regReadDeceleration)
}

// SetRequestedSpeed sets the speed the motor runs at in ModeAuto, in steps
// per second.
//
// Example:
//
//	err := dev.SetRequestedSpeed(1000)
func (d *Dev) SetRequestedSpeed(speed uint16) error {
	return d.setSpeed(regRequestedSpeed, speed, MaxSpeed)
}

// RequestedSpeed reads the speed requested with SetRequestedSpeed.
func (d *Dev) RequestedSpeed() (uint16, error) {
	return d.readUint16(regReadRequestedSpeed)
}

// CurrentSpeed reads the actual motor speed, in steps per second. It is
// negative when the direction is inverted and zero when the motor stands
// still.
func (d *Dev) CurrentSpeed() (int16, error) {
	v, err := d.readUint16(regCurrentSpeed)
	return int16(v), err
}

// SetInvertDirection reverses the direction of rotation in ModeAuto.
func (d *Dev) SetInvertDirection(invert bool) error {
	var v byte
	if invert {
		v = 1
	}
	return d.writeRegister(regInvertDirection, v)
}

// InvertDirection reads whether the direction of rotation is reversed.
func (d *Dev) InvertDirection() (bool, error) {
	v, err := d.readUint8(regReadInvertDirection)
	return v&1 != 0, err
}

// SetZero resets the position register to zero.
func (d *Dev) SetZero() error {
	return d.writeRegister(regZero)
}

// Stop stops the motor.
func (d *Dev) Stop() error {
	return d.writeRegister(regStop)
}

// SystemReset reboots the driver.
func (d *Dev) SystemReset() error {
	return d.writeRegister(regSystemReset)
}

var _ conn.Resource = &Dev{}
var _ fmt.Stringer = &Dev{}
