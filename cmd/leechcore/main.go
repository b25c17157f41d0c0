package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/leechcore/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	go autorestart.RestartOnChange()

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "leechcore:", err)
		os.Exit(1)
	}
}
