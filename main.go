package main

import (
	"os"

	"github.com/urfave/cli"

	"laue/cmd"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "laue"
	app.Usage = "simulate X-ray diffraction images from a crystal model"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "simulate",
			Usage: "simulate a diffraction image",
			Description: `
Load an experiment description (detector geometry, beam spectrum, crystal
orientation and structure factors), integrate the diffraction intensity for
every detector pixel and write the resulting image.

The integration runs on the reference backend unless an accelerator backend
is requested via --backend.`,
			ArgsUsage: "experiment_file.yaml",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "backend",
					Usage: "execution backend (reference, opencl or auto); overrides the experiment file",
				},
				cli.StringFlag{
					Name:  "precision",
					Usage: "accelerator floating point precision (double or single); overrides the experiment file",
				},
				cli.BoolFlag{
					Name:  "verify",
					Usage: "re-run on the reference backend and report per-pixel divergence",
				},
				cli.IntFlag{
					Name:  "workers",
					Value: 0,
					Usage: "number of parallel workers (0 selects one per CPU)",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "image.png",
					Usage: "output filename (.png, .bin or .bin.zst)",
				},
			},
			Action: cmd.Simulate,
		},
		{
			Name:   "list-devices",
			Usage:  "list available opencl devices",
			Action: cmd.ListDevices,
		},
	}

	app.Run(os.Args)
}
