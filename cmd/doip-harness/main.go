// Command doip-harness runs the standalone internal/testharness DoIP
// server as a free-standing process, for manually driving doip-tester
// or doip-discover against a scripted ECU without a real vehicle on
// the bus. Grounded on the teacher's cmd/bench/main.go: a small
// flag-driven driver binary built directly on a library package this
// module already owns, rather than on the production server runner.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hagenberger/doip-client/internal/testharness"
	"github.com/hagenberger/doip-client/internal/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "doip-harness: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr   = flag.String("addr", "127.0.0.1:13400", "listen address")
		target = flag.Int("server-logical-address", 0x1000, "server logical address to report in routing activation")
	)
	flag.Parse()

	script := testharness.ECUScript{
		ServerLogicalAddress: uint16(*target),
		OnDiagnosticMessage: func(uds []byte) (wire.DiagAckCode, [][]byte) {
			// Echo the request back as a positive response SID (request SID + 0x40),
			// the simplest behavior a scripted harness can offer without a real ECU.
			if len(uds) == 0 {
				return wire.DiagNackUnknownTA, nil
			}
			resp := append([]byte{uds[0] + 0x40}, uds[1:]...)
			return wire.DiagAckOK, [][]byte{resp}
		},
	}

	srv, err := testharness.NewServer(*addr, script, nil)
	if err != nil {
		return err
	}
	fmt.Printf("doip-harness listening on %s\n", srv.Addr())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go srv.Serve(ctx)
	<-ctx.Done()
	srv.Close()
	return nil
}
