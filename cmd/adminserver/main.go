package main

import (
	"fmt"
	"os"

	"github.com/bitechdev/changelist/pkg/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	defer logger.Sync()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}
