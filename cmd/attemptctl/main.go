// Command attemptctl inspects and manages login attempt records.
package main

import (
	"os"
)

func main() {
	if err := NewRootCmd(Deps{}).Execute(); err != nil {
		os.Exit(1)
	}
}
