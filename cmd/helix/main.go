// Command helix runs the recruiting outreach assistant.
package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/helix/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	// Development convenience: re-exec when the binary is rebuilt.
	if os.Getenv("HELIX_AUTORESTART") == "1" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "helix:", err)
		os.Exit(1)
	}
}
