// esplink finds the companion ESP32 on the local network and streams host
// telemetry to it, obeying the restart and kill commands it sends back.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
