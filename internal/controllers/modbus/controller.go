package modbusctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	mbserver "github.com/tbrandon/mbserver"

	"github.com/brindle-labs/ecobridge/internal/climate"
	"github.com/brindle-labs/ecobridge/internal/ports"
)

// Config for the Modbus controller.
type Config struct {
	Addr   string
	UnitID byte // Modbus slave/unit ID, 1..247.
}

// Each thermostat occupies one bank of BankSize holding registers,
// starting at index*BankSize:
//
//	+0 actual temperature (tenths of °F, signed)
//	+1 actual humidity (%)
//	+2 desired heat setpoint (tenths, writable: single-setpoint hold)
//	+3 desired cool setpoint (tenths, writable: single-setpoint hold)
//	+4 hvac mode code (writable)
//	+5 fan minimum on-time minutes (writable)
//	+6 fan running flag
//	+7 hold mode code (writable)
//
// Writing a coil at the thermostat's index resumes the program; the ON
// value discards the whole hold stack.
const BankSize = 16

// Hold mode codes on the register map.
const (
	holdCodeNone uint16 = 0
	holdCodeAway uint16 = 1
	holdCodeHome uint16 = 2
	holdCodeTemp uint16 = 3
)

var hvacModeCodes = []string{"auto", "auxHeatOnly", "cool", "heat", "off"}

type Controller struct {
	plat   ports.ClimatePlatform
	cfg    Config
	serv   *mbserver.Server
	runCtx context.Context
}

func New(plat ports.ClimatePlatform, cfg Config) (*Controller, error) {
	if cfg.UnitID == 0 {
		return nil, errors.New("modbus: UnitID is required (non-zero)")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1502"
	}
	return &Controller{plat: plat, cfg: cfg}, nil
}

// Run starts the Modbus server and registers handlers that read from the
// entities' cached state and translate writes into climate commands. It
// blocks until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	c.runCtx = ctx
	serv := mbserver.NewServer()
	c.serv = serv

	// Register handlers BEFORE starting the TCP listener to avoid races
	// inside mbserver between registration and the server's goroutines.

	// Read Holding Registers (function 3).
	serv.RegisterFunctionHandler(3, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		start := int(binary.BigEndian.Uint16(data[0:2]))
		qty := int(binary.BigEndian.Uint16(data[2:4]))
		if qty == 0 || qty > 125 {
			return []byte{}, &mbserver.IllegalDataValue
		}

		regs := make([]uint16, 0, qty)
		for i := 0; i < qty; i++ {
			v, ok := c.readRegister(start + i)
			if !ok {
				return []byte{}, &mbserver.IllegalDataAddress
			}
			regs = append(regs, v)
		}
		byteCount := len(regs) * 2
		resp := make([]byte, 1+byteCount)
		resp[0] = byte(byteCount)
		for i, r := range regs {
			binary.BigEndian.PutUint16(resp[1+i*2:1+i*2+2], r)
		}
		return resp, &mbserver.Success
	})

	// Write Single Coil (function 5) - resume program for the indexed
	// thermostat; ON resumes all.
	serv.RegisterFunctionHandler(5, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		addr := int(binary.BigEndian.Uint16(data[0:2]))
		value := binary.BigEndian.Uint16(data[2:4])

		entities := c.plat.Entities()
		if addr < 0 || addr >= len(entities) {
			return []byte{}, &mbserver.IllegalDataAddress
		}

		var resumeAll bool
		switch value {
		case 0x0000:
			resumeAll = false
		case 0xFF00:
			resumeAll = true
		default:
			return []byte{}, &mbserver.IllegalDataValue
		}

		if err := entities[addr].ResumeProgram(c.commandCtx(), resumeAll); err != nil {
			return []byte{}, &mbserver.SlaveDeviceFailure
		}

		// echo request (address + value)
		resp := make([]byte, 4)
		copy(resp, data[0:4])
		return resp, &mbserver.Success
	})

	// Write Single Register (function 6).
	serv.RegisterFunctionHandler(6, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		addr := int(binary.BigEndian.Uint16(data[0:2]))
		value := binary.BigEndian.Uint16(data[2:4])

		if ex := c.writeRegister(addr, value); ex != nil {
			return []byte{}, ex
		}

		resp := make([]byte, 4)
		copy(resp, data[0:4])
		return resp, &mbserver.Success
	})

	// Write Multiple Registers (function 16).
	serv.RegisterFunctionHandler(16, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		d := frame.GetData()
		if len(d) < 5 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		start := binary.BigEndian.Uint16(d[0:2])
		quantity := binary.BigEndian.Uint16(d[2:4])
		byteCount := int(d[4])
		if byteCount != int(quantity)*2 || len(d) < 5+byteCount {
			return []byte{}, &mbserver.IllegalDataValue
		}
		for i := 0; i < int(quantity); i++ {
			addr := int(start) + i
			val := binary.BigEndian.Uint16(d[5+i*2 : 5+i*2+2])
			if ex := c.writeRegister(addr, val); ex != nil {
				return []byte{}, ex
			}
		}

		resp := make([]byte, 4)
		binary.BigEndian.PutUint16(resp[0:2], start)
		binary.BigEndian.PutUint16(resp[2:4], quantity)
		return resp, &mbserver.Success
	})

	// Now start listening after all handlers are registered.
	if err := serv.ListenTCP(c.cfg.Addr); err != nil {
		return fmt.Errorf("mbserver listen tcp %s: %w", c.cfg.Addr, err)
	}

	<-ctx.Done()
	serv.Close()
	return ctx.Err()
}

func (c *Controller) readRegister(addr int) (uint16, bool) {
	entities := c.plat.Entities()
	index := addr / BankSize
	offset := addr % BankSize
	if index < 0 || index >= len(entities) {
		return 0, false
	}
	st := entities[index].State()

	switch offset {
	case 0:
		return uint16(int16(st.CurrentTemperature * 10)), true
	case 1:
		return uint16(st.Attributes.ActualHumidity), true
	case 2:
		if st.TargetTempLow != nil {
			return uint16(*st.TargetTempLow * 10), true
		}
		if st.CurrentOperation == climate.StateHeat && st.TargetTemperature != nil {
			return uint16(*st.TargetTemperature * 10), true
		}
		return 0, true
	case 3:
		if st.TargetTempHigh != nil {
			return uint16(*st.TargetTempHigh * 10), true
		}
		if st.CurrentOperation == climate.StateCool && st.TargetTemperature != nil {
			return uint16(*st.TargetTemperature * 10), true
		}
		return 0, true
	case 4:
		for code, mode := range hvacModeCodes {
			if mode == st.OperationMode {
				return uint16(code), true
			}
		}
		return 0xFFFF, true
	case 5:
		return uint16(st.FanMinOnTime), true
	case 6:
		if st.FanState == climate.StateOn {
			return 1, true
		}
		return 0, true
	case 7:
		switch climate.HoldMode(st.HoldMode) {
		case climate.HoldAway:
			return holdCodeAway, true
		case climate.HoldHome:
			return holdCodeHome, true
		case climate.HoldTemp:
			return holdCodeTemp, true
		default:
			return holdCodeNone, true
		}
	default:
		// Unused bank slots read as zero so whole-bank reads work.
		if offset < BankSize {
			return 0, true
		}
		return 0, false
	}
}

func (c *Controller) writeRegister(addr int, value uint16) *mbserver.Exception {
	entities := c.plat.Entities()
	index := addr / BankSize
	offset := addr % BankSize
	if index < 0 || index >= len(entities) {
		return &mbserver.IllegalDataAddress
	}
	e := entities[index]
	ctx := c.commandCtx()

	switch offset {
	case 2, 3:
		temp := float64(int16(value)) / 10
		if err := e.SetTemperature(ctx, climate.TemperatureRequest{Temperature: &temp}); err != nil {
			return &mbserver.IllegalDataValue
		}
	case 4:
		if int(value) >= len(hvacModeCodes) {
			return &mbserver.IllegalDataValue
		}
		if err := e.SetOperationMode(ctx, hvacModeCodes[value]); err != nil {
			return &mbserver.IllegalDataValue
		}
	case 5:
		if err := e.SetFanMinOnTime(ctx, int(value)); err != nil {
			return &mbserver.SlaveDeviceFailure
		}
	case 7:
		var mode climate.HoldMode
		switch value {
		case holdCodeAway:
			mode = climate.HoldAway
		case holdCodeHome:
			mode = climate.HoldHome
		case holdCodeTemp:
			mode = climate.HoldTemp
		case holdCodeNone:
			mode = climate.HoldNone
		default:
			return &mbserver.IllegalDataValue
		}
		if err := e.SetHoldMode(ctx, mode); err != nil {
			return &mbserver.SlaveDeviceFailure
		}
	default:
		return &mbserver.IllegalDataAddress
	}
	return nil
}

func (c *Controller) commandCtx() context.Context {
	if c.runCtx != nil {
		return c.runCtx
	}
	return context.Background()
}
