// Command simulator_tcp runs a standalone in-process DoIP ECU on
// localhost:13400 for manual testing of the diagnostic client against a
// real socket (as opposed to the in-memory fakes used by unit tests).
package main

import (
	"log"
	"os"

	"github.com/anodyne74/doip-diag-client/testing/simulator"
)

func main() {
	logger := log.New(os.Stdout, "simulator: ", log.LstdFlags)

	ecu := simulator.NewECU(simulator.ECUConfig{
		SourceAddress: 0x0001,
		FinalResponse: []byte{0x50, 0x01, 0x00, 0x32, 0x01, 0xF4},
	}, logger)

	addr, err := ecu.Start("localhost:13400")
	if err != nil {
		log.Fatal(err)
	}
	logger.Printf("listening on %s", addr)

	select {}
}
