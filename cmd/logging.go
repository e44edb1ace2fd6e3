package cmd

import (
	"github.com/urfave/cli"

	"laue/log"
)

var logger = log.New("laue")

func setupLogging(ctx *cli.Context) {
	switch {
	case ctx.GlobalBool("vv"):
		log.SetVerbosity(log.Trace)
	case ctx.GlobalBool("v"):
		log.SetVerbosity(log.Verbose)
	}
}
