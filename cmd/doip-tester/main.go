// Command doip-tester connects to one configured DM conversation and
// sends a single UDS request, printing the response. Grounded on the
// teacher's cmd/hydradns/main.go flag parsing and run() error-wrapping
// style, adapted from "start a long-running server" to "one-shot CLI
// exercising the client library".
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/hagenberger/doip-client/client"
	"github.com/hagenberger/doip-client/config"
	"github.com/hagenberger/doip-client/internal/helpers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "doip-tester: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath  = flag.String("config", "", "path to JSON configuration file")
		convName = flag.String("conversation", "", "configured ConversationName to use")
		targetIP = flag.String("ip", "", "diagnostic server IP to connect to")
		targetSA = flag.Int("target", 0, "target logical address (decimal)")
		udsHex   = flag.String("uds", "", "UDS request bytes, hex-encoded (e.g. 22f190)")
	)
	flag.Parse()

	if *convName == "" || *targetIP == "" || *udsHex == "" {
		return fmt.Errorf("usage: doip-tester -conversation NAME -ip ADDR -target SA -uds HEXBYTES")
	}

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

	conv, err := c.GetDiagnosticClientConversation(*convName)
	if err != nil {
		return err
	}

	res, err := conv.ConnectToDiagServer(ctx, helpers.ClampIntToUint16(*targetSA), *targetIP)
	if err != nil {
		return err
	}
	fmt.Printf("connect result: %s\n", res)

	uds, err := hex.DecodeString(strings.TrimPrefix(*udsHex, "0x"))
	if err != nil {
		return fmt.Errorf("invalid -uds: %w", err)
	}

	payload, result := conv.SendDiagnosticRequest(ctx, uds)
	fmt.Printf("diagnostic result: %s\n", result)
	if len(payload) > 0 {
		fmt.Printf("response: %s\n", hex.EncodeToString(payload))
	}

	conv.DisconnectFromDiagServer()
	return nil
}
