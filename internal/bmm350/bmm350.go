// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bmm350 provides an I2C driver for the Bosch BMM350 magnetometer.
//
// Refer to the datasheet for more information.
//
// https://www.bosch-sensortec.com/products/motion-sensors/magnetometers/bmm350/
package bmm350

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// I2C register map for the BMM350.
const (
	regChipID        = 0x00
	regErrReg        = 0x02
	regPMUCmdAggrSet = 0x04
	regPMUCmdAxisEn  = 0x05
	regPMUCmd        = 0x06
	regPMUCmdStatus0 = 0x07
	regIntCtrl       = 0x2E
	regMagXXLSB      = 0x31 // X,Y,Z 24-bit LSB-first, then temperature
	regCmd           = 0x7E
)

// Default I2C address (ADSEL low).
const DefaultAddr = 0x14

// ChipID is the expected value of the chip ID register.
const ChipID = 0x33

// PMUCmdBusyMask selects the command-busy bit of the PMU status register.
const PMUCmdBusyMask = 0x01

// DRDYDataRegEnMask selects the data-ready enable bit of INT_CTRL.
const DRDYDataRegEnMask = 0x80

const cmdSoftReset = 0xB6

// PowerMode is a PMU_CMD power mode command.
type PowerMode byte

const (
	PowerModeSuspend    PowerMode = 0x00
	PowerModeNormal     PowerMode = 0x01
	pmuCmdUpdateOAE     PowerMode = 0x02
	PowerModeForced     PowerMode = 0x03
	PowerModeForcedFast PowerMode = 0x04
)

// ODR is an output data rate code (PMU_CMD_AGGR_SET bits 3..0).
type ODR byte

const (
	ODR400Hz  ODR = 0x02
	ODR200Hz  ODR = 0x03
	ODR100Hz  ODR = 0x04
	ODR50Hz   ODR = 0x05
	ODR25Hz   ODR = 0x06
	ODR12_5Hz ODR = 0x07
)

// Averaging is a sample averaging code (PMU_CMD_AGGR_SET bits 5..4).
type Averaging byte

const (
	AvgNone Averaging = 0x00
	Avg2    Averaging = 0x01
	Avg4    Averaging = 0x02
	Avg8    Averaging = 0x03
)

// String returns the averaging setting as a human-readable count.
func (a Averaging) String() string {
	switch a {
	case Avg2:
		return "2"
	case Avg4:
		return "4"
	case Avg8:
		return "8"
	default:
		return "none"
	}
}

// Typical sensitivity, uncompensated: full scale is ±2000 µT over a signed
// 24-bit count. OTP trim is not applied; absolute accuracy is not needed
// for noise surveys, which only look at deviations around the mean.
const (
	microteslaPerLSB = 2000.0 / 8388608.0
	degCPerLSB       = 1.0 / 25600.0
	tempOffsetDegC   = 25.49
)

// Data is one compensated measurement: field in µT, temperature in °C.
type Data struct {
	X           float64
	Y           float64
	Z           float64
	Temperature float64
}

// Opts holds initialization options.
//
// Addr: I2C address, default 0x14.
// ODR: output data rate code, default 100 Hz.
// Avg: sample averaging, default none.
type Opts struct {
	Addr uint16
	ODR  ODR
	Avg  Averaging
}

// Dev represents a BMM350 device.
//
// NOTE: every I2C read returns two dummy bytes before the payload.
type Dev struct {
	dev i2c.Dev
}

// New soft-resets the device, verifies its identity and applies the
// requested ODR/averaging with all axes enabled.
func New(bus i2c.Bus, opts Opts) (*Dev, error) {
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultAddr
	}
	odr := opts.ODR
	if odr == 0 {
		odr = ODR100Hz
	}

	d := &Dev{dev: i2c.Dev{Addr: addr, Bus: bus}}

	if err := d.writeReg(regCmd, cmdSoftReset); err != nil {
		return nil, fmt.Errorf("bmm350 soft reset: %w", err)
	}
	// Start-up time after soft reset.
	time.Sleep(24 * time.Millisecond)

	id, err := d.ChipID()
	if err != nil {
		return nil, fmt.Errorf("bmm350 chip ID read: %w", err)
	}
	if id != ChipID {
		return nil, fmt.Errorf("bmm350: unexpected chip ID 0x%02X, want 0x%02X", id, ChipID)
	}

	if err := d.SetODRPerformance(odr, opts.Avg); err != nil {
		return nil, err
	}
	if err := d.EnableAxes(true, true, true); err != nil {
		return nil, err
	}
	return d, nil
}

// ChipID reads the chip identity register, expected 0x33.
func (d *Dev) ChipID() (byte, error) {
	return d.readReg(regChipID)
}

// ErrorReg reads the error register. A non-zero value reports a PMU
// command error.
func (d *Dev) ErrorReg() (byte, error) {
	return d.readReg(regErrReg)
}

// PMUStatus reads PMU_CMD_STATUS_0. Bit 0 (PMUCmdBusyMask) is set while
// a PMU command is still executing.
func (d *Dev) PMUStatus() (byte, error) {
	return d.readReg(regPMUCmdStatus0)
}

// IntCtrl reads the interrupt control register.
func (d *Dev) IntCtrl() (byte, error) {
	return d.readReg(regIntCtrl)
}

// ConfigureInterrupt sets the interrupt pin behavior: latched vs pulsed,
// polarity, output driver and pin mapping. The data-ready enable bit is
// left untouched; use EnableDataReadyInterrupt for that.
func (d *Dev) ConfigureInterrupt(latched, activeHigh, openDrain, mapToPin bool) error {
	cur, err := d.readReg(regIntCtrl)
	if err != nil {
		return err
	}
	v := cur & DRDYDataRegEnMask
	if latched {
		v |= 1 << 0
	}
	if activeHigh {
		v |= 1 << 1
	}
	if !openDrain {
		v |= 1 << 2 // push-pull
	}
	if mapToPin {
		v |= 1 << 3
	}
	return d.writeReg(regIntCtrl, v)
}

// EnableDataReadyInterrupt sets or clears the data-ready interrupt enable
// bit, preserving the rest of INT_CTRL.
func (d *Dev) EnableDataReadyInterrupt(enable bool) error {
	cur, err := d.readReg(regIntCtrl)
	if err != nil {
		return err
	}
	v := cur &^ byte(DRDYDataRegEnMask)
	if enable {
		v |= DRDYDataRegEnMask
	}
	return d.writeReg(regIntCtrl, v)
}

// SetODRPerformance writes the ODR and averaging codes and issues the
// aggregation update command.
func (d *Dev) SetODRPerformance(odr ODR, avg Averaging) error {
	if err := d.writeReg(regPMUCmdAggrSet, byte(avg)<<4|byte(odr)); err != nil {
		return fmt.Errorf("bmm350 aggr set: %w", err)
	}
	if err := d.writeReg(regPMUCmd, byte(pmuCmdUpdateOAE)); err != nil {
		return fmt.Errorf("bmm350 update OAE: %w", err)
	}
	time.Sleep(time.Millisecond)
	return nil
}

// EnableAxes enables or disables measurement per axis.
func (d *Dev) EnableAxes(x, y, z bool) error {
	var v byte
	if x {
		v |= 1 << 0
	}
	if y {
		v |= 1 << 1
	}
	if z {
		v |= 1 << 2
	}
	return d.writeReg(regPMUCmdAxisEn, v)
}

// SetPowerMode issues a PMU power mode command and waits out the
// worst-case measurement delay for the one-shot modes.
func (d *Dev) SetPowerMode(m PowerMode) error {
	if err := d.writeReg(regPMUCmd, byte(m)); err != nil {
		return fmt.Errorf("bmm350 set power mode 0x%02X: %w", byte(m), err)
	}
	switch m {
	case PowerModeForced:
		time.Sleep(15 * time.Millisecond)
	case PowerModeForcedFast:
		time.Sleep(4 * time.Millisecond)
	default:
		time.Sleep(38 * time.Millisecond)
	}
	return nil
}

// Read returns one compensated measurement.
func (d *Dev) Read() (Data, error) {
	// X, Y, Z and temperature, 24 bits each, LSB first.
	buf := make([]byte, 12)
	if err := d.readRegBlock(regMagXXLSB, buf); err != nil {
		return Data{}, fmt.Errorf("bmm350 data read: %w", err)
	}
	x := signExtend24(buf[0], buf[1], buf[2])
	y := signExtend24(buf[3], buf[4], buf[5])
	z := signExtend24(buf[6], buf[7], buf[8])
	t := signExtend24(buf[9], buf[10], buf[11])

	temp := float64(t) * degCPerLSB
	// The raw temperature is centered away from zero.
	if temp > 0 {
		temp -= tempOffsetDegC
	} else if temp < 0 {
		temp += tempOffsetDegC
	}

	return Data{
		X:           float64(x) * microteslaPerLSB,
		Y:           float64(y) * microteslaPerLSB,
		Z:           float64(z) * microteslaPerLSB,
		Temperature: temp,
	}, nil
}

func signExtend24(xlsb, lsb, msb byte) int32 {
	v := int32(xlsb) | int32(lsb)<<8 | int32(msb)<<16
	if v >= 1<<23 {
		v -= 1 << 24
	}
	return v
}

func (d *Dev) writeReg(addr byte, val byte) error {
	return d.dev.Tx([]byte{addr, val}, nil)
}

func (d *Dev) readReg(addr byte) (byte, error) {
	b := make([]byte, 1)
	if err := d.readRegBlock(addr, b); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Dev) readRegBlock(addr byte, out []byte) error {
	if len(out) == 0 {
		return errors.New("readRegBlock: empty buffer")
	}
	// Two dummy bytes precede every I2C read payload.
	raw := make([]byte, len(out)+2)
	if err := d.dev.Tx([]byte{addr}, raw); err != nil {
		return err
	}
	copy(out, raw[2:])
	return nil
}
