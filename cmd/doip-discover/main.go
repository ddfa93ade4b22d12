// Command doip-discover sends a VehicleIdentificationRequest and
// prints every VehicleAnnouncement observed within the collection
// window. Grounded on the teacher's cmd/dnsquery/main.go: a small
// one-shot query CLI built directly on library types rather than on
// the full server runner.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/hagenberger/doip-client/client"
	"github.com/hagenberger/doip-client/config"
	"github.com/hagenberger/doip-client/internal/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "doip-discover: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath = flag.String("config", "", "path to JSON configuration file")
		mode    = flag.Int("mode", 0, "0=broadcast, 1=by VIN, 2=by EID")
		vin     = flag.String("vin", "", "17-character VIN (mode=1)")
		eidHex  = flag.String("eid", "", "6-byte EID, hex-encoded (mode=2)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	c, err := client.New(cfg, nil)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := c.Initialize(ctx); err != nil {
		return err
	}
	defer c.DeInitialize()

	var selector []byte
	if *mode == int(wire.VIModeByVIN) {
		selector = []byte(*vin)
	} else if *mode == int(wire.VIModeByEID) {
		selector, err = hex.DecodeString(*eidHex)
		if err != nil {
			return fmt.Errorf("invalid -eid: %w", err)
		}
	}

	anns, err := c.SendVehicleIdentificationRequest(ctx, wire.VehicleIdentificationMode(*mode), selector)
	if err != nil {
		return err
	}

	fmt.Printf("%d vehicle(s) responded:\n", len(anns))
	for _, a := range anns {
		fmt.Printf("  from=%s payload=%s\n", a.FromIP, hex.EncodeToString(a.Payload))
	}
	return nil
}
