// Command challengeboard serves rotating challenge lists and
// tracks participant progress against them.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
