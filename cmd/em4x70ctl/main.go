// command em4x70ctl is a reference host for the EM4x70 reader: it
// dispatches the INFO/WRITE/UNLOCK/AUTH/BRUTE/SETPIN/SETKEY requests
// either to a reader device over a serial link, to a Raspberry Pi's
// GPIO/SPI pins directly, or to an in-process simulator for testing
// the command surface without hardware.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/tarm/serial"

	"em4x70reader.dev"
	"em4x70reader.dev/hal/periphhal"
)

var (
	device = flag.String("device", "", "serial device speaking the reader's wire protocol")
	pi     = flag.Bool("pi", false, "drive the reader directly from this Raspberry Pi's GPIO/SPI pins")
	spiDev = flag.String("spi", "/dev/spidev0.0", "SPI port for the ADC, when -pi is set")
	parity = flag.Bool("parity", false, "use the EM4170 even-parity command variant")
	debug  = flag.Bool("debug", false, "dump the RF transaction log after each operation")

	word   = flag.Uint("word", 0, "16-bit word for write")
	addr   = flag.Uint("addr", 0, "block address (0-15) for write, or key byte-pair (7,8,9) for brute")
	pin    = flag.Uint64("pin", 0, "32-bit PIN for unlock/setpin")
	rnd    = flag.String("rnd", "", "7-byte reader nonce, hex, for auth/brute")
	frnd   = flag.String("frnd", "", "4-byte reader response, hex, for auth/brute")
	start  = flag.Uint("start", 0, "starting 16-bit key guess for brute")
	target = flag.String("target", "", "3-byte target g(RN), hex, for brute")
	key    = flag.String("key", "", "12-byte key, hex, for setkey")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf("usage: em4x70ctl [flags] info|write|unlock|auth|brute|setpin|setkey")
	}
	cmd := args[0]

	switch {
	case *device != "":
		c := &serial.Config{Name: *device, Baud: 115200}
		port, err := serial.OpenPort(c)
		if err != nil {
			return fmt.Errorf("em4x70ctl: open %s: %w", *device, err)
		}
		defer port.Close()
		return runWire(newWireClient(port), cmd)
	case *pi:
		a, err := periphhal.Open(*spiDev, periphhal.DefaultPins)
		if err != nil {
			return fmt.Errorf("em4x70ctl: open pi front end: %w", err)
		}
		return runLocal(em4x70.NewSession(a, a, *parity), cmd)
	default:
		sim := newSimulator()
		return runLocal(em4x70.NewSession(sim, sim, *parity), cmd)
	}
}

func hexBytes(s string, n int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	if len(b) != n {
		return nil, fmt.Errorf("%q: want %d bytes, got %d", s, n, len(b))
	}
	return b, nil
}

func parseRndFrnd() (rnd7 [7]byte, frnd4 [4]byte, err error) {
	r, err := hexBytes(*rnd, 7)
	if err != nil {
		return rnd7, frnd4, err
	}
	f, err := hexBytes(*frnd, 4)
	if err != nil {
		return rnd7, frnd4, err
	}
	copy(rnd7[:], r)
	copy(frnd4[:], f)
	return rnd7, frnd4, nil
}

// runLocal runs cmd against an in-process Session, then reports its
// outcome with the SUCCESS/SOFT_FAIL/ABORTED wording a device reply
// would carry and, with -debug, dumps the RF transaction log
// regardless of outcome.
func runLocal(s *em4x70.Session, cmd string) error {
	err := runLocalOp(s, cmd)
	if *debug {
		fmt.Fprintf(os.Stderr, "em4x70ctl: debug: %s\n", s.Log.Dump())
	}
	switch em4x70.StatusOf(err) {
	case em4x70.StatusSuccess:
		return nil
	case em4x70.StatusAborted:
		return fmt.Errorf("em4x70ctl: ABORTED: %w", err)
	default:
		return fmt.Errorf("em4x70ctl: SOFT_FAIL: %w", err)
	}
}

func runLocalOp(s *em4x70.Session, cmd string) error {
	switch cmd {
	case "info":
		variant, err := s.Identify()
		if err != nil {
			return err
		}
		fmt.Printf("variant: %s\nimage: %x\n", variant, s.Image)
	case "write":
		if err := s.WriteBlock(uint16(*word), uint8(*addr)); err != nil {
			return err
		}
		fmt.Printf("image: %x\n", s.Image)
	case "unlock":
		if err := s.Unlock(uint32(*pin)); err != nil {
			return err
		}
		fmt.Printf("image: %x\n", s.Image)
	case "auth":
		r, f, err := parseRndFrnd()
		if err != nil {
			return err
		}
		grn, err := s.Authenticate(r, f)
		if err != nil {
			return err
		}
		fmt.Printf("g(rn): %x\n", grn)
	case "brute":
		r, f, err := parseRndFrnd()
		if err != nil {
			return err
		}
		t, err := hexBytes(*target, 3)
		if err != nil {
			return err
		}
		var targetArr [3]byte
		copy(targetArr[:], t)
		k, err := s.BruteForce(uint8(*addr), r, f, uint16(*start), targetArr, func(k uint16) {
			fmt.Printf("progress: %#04x\n", k)
		})
		if err != nil {
			return err
		}
		fmt.Printf("key: %x\n", k)
	case "setpin":
		if err := s.WritePIN(uint32(*pin)); err != nil {
			return err
		}
		fmt.Printf("image: %x\n", s.Image)
	case "setkey":
		kb, err := hexBytes(*key, 12)
		if err != nil {
			return err
		}
		var keyArr [12]byte
		copy(keyArr[:], kb)
		if err := s.WriteKey(keyArr); err != nil {
			return err
		}
		fmt.Printf("image: %x\n", s.Image)
	default:
		return fmt.Errorf("em4x70ctl: unknown command %q", cmd)
	}
	return nil
}

func runWire(c *wireClient, cmd string) error {
	switch cmd {
	case "info":
		reply, err := c.info(*parity)
		if err != nil {
			return err
		}
		fmt.Printf("image: %x\n", reply)
	case "write":
		reply, err := c.write(*parity, uint16(*word), uint8(*addr))
		if err != nil {
			return err
		}
		fmt.Printf("image: %x\n", reply)
	case "unlock":
		reply, err := c.unlock(*parity, uint32(*pin))
		if err != nil {
			return err
		}
		fmt.Printf("image: %x\n", reply)
	case "auth":
		r, f, err := parseRndFrnd()
		if err != nil {
			return err
		}
		reply, err := c.auth(*parity, r, f)
		if err != nil {
			return err
		}
		fmt.Printf("g(rn): %x\n", reply)
	case "brute":
		r, f, err := parseRndFrnd()
		if err != nil {
			return err
		}
		t, err := hexBytes(*target, 3)
		if err != nil {
			return err
		}
		var targetArr [3]byte
		copy(targetArr[:], t)
		reply, err := c.brute(*parity, uint8(*addr), r, f, uint16(*start), targetArr)
		if err != nil {
			return err
		}
		fmt.Printf("key: %x\n", reply)
	case "setpin":
		reply, err := c.setPIN(*parity, uint32(*pin))
		if err != nil {
			return err
		}
		fmt.Printf("image: %x\n", reply)
	case "setkey":
		kb, err := hexBytes(*key, 12)
		if err != nil {
			return err
		}
		var keyArr [12]byte
		copy(keyArr[:], kb)
		reply, err := c.setKey(*parity, keyArr)
		if err != nil {
			return err
		}
		fmt.Printf("image: %x\n", reply)
	default:
		return fmt.Errorf("em4x70ctl: unknown command %q", cmd)
	}
	return nil
}
