package cmd

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"laue/experiment"
	"laue/output"
	"laue/sim"
	"laue/sim/opencl"
)

// Simulate a diffraction image from an experiment description.
func Simulate(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing experiment file argument")
	}

	exp, err := experiment.Load(ctx.Args().First())
	if err != nil {
		return err
	}

	inputs, opts, err := exp.Build()
	if err != nil {
		return err
	}

	// Command line flags override the experiment file.
	if workers := ctx.Int("workers"); workers > 0 {
		opts.Workers = workers
	}
	switch prec := ctx.String("precision"); prec {
	case "":
	case "double":
		opts.Precision = sim.PrecisionDouble
	case "single":
		opts.Precision = sim.PrecisionSingle
	default:
		return fmt.Errorf("unknown precision %q", prec)
	}

	backend := ctx.String("backend")
	if backend == "" {
		backend = exp.Run.Backend
	}

	var factories []sim.BackendFactory
	switch backend {
	case "", "reference":
	case "auto", "opencl":
		factories = append(factories, opencl.Factory(opts.Precision))
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}

	s, err := sim.New(inputs, opts, factories...)
	if err != nil {
		return err
	}
	defer s.Close()

	img, err := s.Run()
	if err != nil {
		return err
	}

	for _, cond := range img.Meta.Degraded {
		logger.Warningf("degraded run: %s", cond)
	}

	if ctx.Bool("verify") && len(factories) > 0 {
		if err := verifyAgainstReference(inputs, opts, img); err != nil {
			return err
		}
	}

	displayRunStats(img.Meta)

	outFile := ctx.String("out")
	if err := output.WriteImage(outFile, img); err != nil {
		return err
	}
	logger.Noticef("wrote %dx%d image to %s", img.Width, img.Height, outFile)

	return nil
}

// Re-run the simulation on the reference backend and compare pixel by
// pixel. Divergence beyond tolerance is a precision report, not an error:
// it is logged and recorded in the image metadata.
func verifyAgainstReference(inputs sim.Inputs, opts sim.Options, img *sim.Image) error {
	if opts.Noise.Kind != sim.NoiseNone {
		logger.Warning("skipping verification: noisy images are not comparable across backends")
		return nil
	}

	ref, err := sim.New(inputs, opts)
	if err != nil {
		return err
	}
	defer ref.Close()

	refImg, err := ref.Run()
	if err != nil {
		return err
	}

	report, err := sim.ComparePixels(refImg.Pixels, img.Pixels, sim.DefaultParityTolerance)
	if err != nil {
		return err
	}
	if report.Ok() {
		logger.Noticef("verification passed: %s", report)
		return nil
	}

	logger.Warningf("verification: %s", report)
	img.Meta.Degraded = append(img.Meta.Degraded, report.String())
	return nil
}

func displayRunStats(meta sim.Meta) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Backend", "Block height", "% of frame", "Render time"})
	for _, stat := range meta.BackendStats {
		table.Append([]string{
			stat.Id,
			fmt.Sprintf("%d", stat.BlockH),
			fmt.Sprintf("%02.1f %%", stat.FramePercent),
			stat.RenderTime.String(),
		})
	}
	table.SetFooter([]string{"", "", "TOTAL", meta.Elapsed.String()})

	table.Render()
	logger.Noticef(
		"run statistics (%d samples per pixel, %s precision)\n%s",
		meta.SamplesPerPixel, meta.Precision, buf.String(),
	)
}
