// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mpu9250 is a minimal SPI driver for the InvenSense MPU-9250.
// It configures the gyroscope and accelerometer and reads the sensor
// block in a single burst. The magnetometer is not used.
package mpu9250

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// MPU-9250 register map (gyro/accel die).
const (
	regSmplrtDiv   = 0x19
	regConfig      = 0x1A
	regGyroConfig  = 0x1B
	regAccelConfig = 0x1C
	regAccelXoutH  = 0x3B
	regUserCtrl    = 0x6A
	regPwrMgmt1    = 0x6B
	regWhoAmI      = 0x75

	whoAmIValue = 0x71

	bitHReset   = 0x80
	bitI2CIfDis = 0x10
	clkselPLL   = 0x01

	readFlag = 0x80
)

// Gyro full scale ±500 deg/s, accel full scale ±2 g.
const (
	gyroFS500  = 0x08
	accelFS2G  = 0x00
	gyroLSBDeg = 65.5 // LSB per deg/s at ±500
)

// Device is an MPU-9250 on a SPI bus with a dedicated chip-select pin.
// The CS pin is driven manually so several devices can share one bus.
type Device struct {
	port spi.PortCloser
	conn spi.Conn
	cs   gpio.PinOut
}

// New opens the SPI port, verifies the chip identity and applies the
// fixed gyro/accel configuration.
func New(spiDev string, cs gpio.PinOut) (*Device, error) {
	port, err := spireg.Open(spiDev)
	if err != nil {
		return nil, fmt.Errorf("open SPI port %q: %w", spiDev, err)
	}

	conn, err := port.Connect(1*physic.MegaHertz, spi.Mode3, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect SPI: %w", err)
	}

	if err := cs.Out(gpio.High); err != nil {
		port.Close()
		return nil, fmt.Errorf("CS pin setup: %w", err)
	}

	d := &Device{port: port, conn: conn, cs: cs}

	if err := d.init(); err != nil {
		port.Close()
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	// Reset, then wake with the PLL clock source.
	if err := d.writeReg(regPwrMgmt1, bitHReset); err != nil {
		return fmt.Errorf("device reset: %w", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := d.writeReg(regPwrMgmt1, clkselPLL); err != nil {
		return fmt.Errorf("clock select: %w", err)
	}
	time.Sleep(10 * time.Millisecond)

	// Disable the I2C slave interface; the chip defaults to I2C and a
	// stray start condition on the SPI lines can lock it up otherwise.
	if err := d.writeReg(regUserCtrl, bitI2CIfDis); err != nil {
		return fmt.Errorf("disable I2C interface: %w", err)
	}

	id, err := d.readReg(regWhoAmI)
	if err != nil {
		return fmt.Errorf("read WHO_AM_I: %w", err)
	}
	if id != whoAmIValue {
		return fmt.Errorf("unexpected WHO_AM_I 0x%02X (want 0x%02X)", id, whoAmIValue)
	}

	// 1kHz internal rate, DLPF at 41Hz, output divided to 100Hz.
	if err := d.writeReg(regConfig, 0x03); err != nil {
		return fmt.Errorf("set DLPF: %w", err)
	}
	if err := d.writeReg(regSmplrtDiv, 0x09); err != nil {
		return fmt.Errorf("set sample rate divider: %w", err)
	}
	if err := d.writeReg(regGyroConfig, gyroFS500); err != nil {
		return fmt.Errorf("set gyro range: %w", err)
	}
	if err := d.writeReg(regAccelConfig, accelFS2G); err != nil {
		return fmt.Errorf("set accel range: %w", err)
	}
	return nil
}

// Sample is one burst read of the motion registers. Gyro rates are in
// deg/s, accelerometer axes are raw counts (16384 per g at ±2g).
type Sample struct {
	GyroX, GyroY, GyroZ float64
	AccelX              int16
	AccelY              int16
	AccelZ              int16
}

// Read performs a single 14-byte burst read of accel, temperature and
// gyro registers.
func (d *Device) Read() (Sample, error) {
	buf, err := d.readBurst(regAccelXoutH, 14)
	if err != nil {
		return Sample{}, fmt.Errorf("burst read: %w", err)
	}

	ax := int16(buf[0])<<8 | int16(buf[1])
	ay := int16(buf[2])<<8 | int16(buf[3])
	az := int16(buf[4])<<8 | int16(buf[5])
	// buf[6:8] is the temperature, unused.
	gx := int16(buf[8])<<8 | int16(buf[9])
	gy := int16(buf[10])<<8 | int16(buf[11])
	gz := int16(buf[12])<<8 | int16(buf[13])

	return Sample{
		GyroX:  float64(gx) / gyroLSBDeg,
		GyroY:  float64(gy) / gyroLSBDeg,
		GyroZ:  float64(gz) / gyroLSBDeg,
		AccelX: ax,
		AccelY: ay,
		AccelZ: az,
	}, nil
}

// Close releases the SPI port.
func (d *Device) Close() error {
	return d.port.Close()
}

func (d *Device) writeReg(reg, value byte) error {
	if err := d.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer d.cs.Out(gpio.High)
	return d.conn.Tx([]byte{reg, value}, nil)
}

func (d *Device) readReg(reg byte) (byte, error) {
	buf, err := d.readBurst(reg, 1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (d *Device) readBurst(reg byte, n int) ([]byte, error) {
	if err := d.cs.Out(gpio.Low); err != nil {
		return nil, err
	}
	defer d.cs.Out(gpio.High)

	w := make([]byte, n+1)
	w[0] = reg | readFlag
	r := make([]byte, n+1)
	if err := d.conn.Tx(w, r); err != nil {
		return nil, err
	}
	return r[1:], nil
}
