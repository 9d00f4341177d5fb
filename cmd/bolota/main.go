// Command bolota runs the veterinary medication assistant.
//
//	bolota serve [--addr :8080] [--csv medications.csv]
//	bolota seed --csv medications.csv [--database-url postgres://...]
//	bolota chat [--remote http://localhost:8080] [--query "me fale sobre amoxicilina"]
package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	opts := &Options{}
	var first string
	if len(args) > 0 {
		first = args[0]
	}
	opts.Init(first)

	parser := flags.NewParser(opts, flags.Default)
	_, err := parser.ParseArgs(args)
	return err
}
