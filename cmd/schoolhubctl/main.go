// Command schoolhubctl is the operator CLI for admins, conversions and
// tenant cleanup. It talks to the central database directly; welcome mail
// jobs it enqueues are delivered by a running API server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
