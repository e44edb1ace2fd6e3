//go:build cl

package opencl

import (
	"fmt"
	"strings"
	"time"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"

	"laue/sim"
	"laue/types"
)

type clBackend struct {
	device    *cl.Device
	context   *cl.Context
	queue     *cl.CommandQueue
	program   *cl.Program
	kernel    *cl.Kernel
	precision sim.Precision
	speed     uint32

	req *sim.Request

	paramBuf    *cl.MemObject
	domainBuf   *cl.MemObject
	spectrumBuf *cl.MemObject
	gridBuf     *cl.MemObject
	pixelBuf    *cl.MemObject

	// Grid bounds and loop counts captured at Init time.
	fmin, fdim  [3]int32
	clampFlag   int32
	oversample  int32
	domainCount int32
	lineCount   int32
	width       int32

	// Host readback buffer for single precision runs.
	pixels32 []float32

	stats *sim.Stats
}

// Create an accelerator backend on the best available OpenCL device. GPU
// devices are preferred over CPU devices; for double precision runs devices
// without the cl_khr_fp64 extension are skipped.
func NewBackend(precision sim.Precision) (sim.Backend, error) {
	device, err := selectDevice(precision)
	if err != nil {
		return nil, err
	}

	context, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("opencl: create context: %v", err)
	}
	queue, err := context.CreateCommandQueue(device, 0)
	if err != nil {
		context.Release()
		return nil, fmt.Errorf("opencl: create command queue: %v", err)
	}

	program, err := context.CreateProgramWithSource([]string{kernelSource})
	if err != nil {
		queue.Release()
		context.Release()
		return nil, fmt.Errorf("opencl: create program: %v", err)
	}

	var buildOptions string
	if precision == sim.PrecisionSingle {
		buildOptions = "-D SINGLE_PRECISION"
	}
	if err := program.BuildProgram([]*cl.Device{device}, buildOptions); err != nil {
		program.Release()
		queue.Release()
		context.Release()
		return nil, fmt.Errorf("opencl: build program: %v", err)
	}

	kernel, err := program.CreateKernel("integrate_block")
	if err != nil {
		program.Release()
		queue.Release()
		context.Release()
		return nil, fmt.Errorf("opencl: create kernel: %v", err)
	}

	return &clBackend{
		device:    device,
		context:   context,
		queue:     queue,
		program:   program,
		kernel:    kernel,
		precision: precision,
		speed:     deviceSpeed(device),
		stats:     &sim.Stats{},
	}, nil
}

// Factory wraps NewBackend for simulator construction.
func Factory(precision sim.Precision) sim.BackendFactory {
	return func() (sim.Backend, error) {
		return NewBackend(precision)
	}
}

func selectDevice(precision sim.Precision) (*cl.Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sim.ErrBackendUnavailable, err)
	}

	var best *cl.Device
	var bestGPU bool
	for _, p := range platforms {
		devices, derr := p.GetDevices(cl.DeviceTypeAll)
		if derr != nil {
			continue
		}
		for _, d := range devices {
			if precision == sim.PrecisionDouble && !strings.Contains(d.Extensions(), "cl_khr_fp64") {
				continue
			}
			gpu := d.Type() == cl.DeviceTypeGPU
			switch {
			case best == nil,
				gpu && !bestGPU,
				gpu == bestGPU && deviceSpeed(d) > deviceSpeed(best):
				best = d
				bestGPU = gpu
			}
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no usable opencl device for %s precision", sim.ErrBackendUnavailable, precision)
	}
	return best, nil
}

func deviceSpeed(d *cl.Device) uint32 {
	speed := uint32(d.MaxComputeUnits()) * uint32(d.MaxClockFrequency()) / 1000
	if speed < 1 {
		speed = 1
	}
	return speed
}

// Get backend id.
func (b *clBackend) Id() string {
	return fmt.Sprintf("opencl (%s)", b.device.Name())
}

// Get the computation speed estimate.
func (b *clBackend) Speed() uint32 {
	return b.speed
}

// Prepare for a run: derive the mosaic domain set, marshal the scalar
// parameters and upload them together with the dense structure factor grid.
func (b *clBackend) Init(req *sim.Request) error {
	if req.Opts.Policy == sim.PolicyStrict {
		return fmt.Errorf("opencl: %w: strict numerical policy requires the reference backend", sim.ErrBackendUnavailable)
	}

	integrator, err := sim.NewIntegrator(req)
	if err != nil {
		return err
	}

	params := make([]float64, paramCount)
	params[paramDistance] = req.Detector.Distance
	params[paramPixelSize] = req.Detector.PixelSize
	params[paramBeamCenterF] = req.Detector.BeamCenterFast
	params[paramBeamCenterS] = req.Detector.BeamCenterSlow

	fast, slow, normal := req.Detector.Basis()
	putVec3(params, paramFastAxis, fast)
	putVec3(params, paramSlowAxis, slow)
	putVec3(params, paramNormal, normal)
	putVec3(params, paramBeamDir, req.Beam.Direction)

	params[paramPolar] = req.Beam.Polarization
	if req.Beam.Polarization != 0 {
		bVec := req.Beam.PolarizationAxis.Cross(req.Beam.Direction).Normalize()
		eVec := req.Beam.Direction.Cross(bVec).Normalize()
		putVec3(params, paramBVec, bVec)
		putVec3(params, paramEVec, eVec)
	}
	params[paramMinAirpath] = integrator.MinAirpath()
	params[paramDefaultRe] = real(req.Table.Default())
	params[paramDefaultIm] = imag(req.Table.Default())

	grid, fmin, fmax := req.Table.DenseGrid()

	domains := integrator.Domains()
	domainData := make([]float64, 0, len(domains)*9)
	for _, dom := range domains {
		inv := dom.InverseMatrix()
		domainData = append(domainData, inv[:]...)
	}

	spectrumData := make([]float64, 0, len(req.Beam.Spectrum)*2)
	for _, line := range req.Beam.Spectrum {
		spectrumData = append(spectrumData, line.Wavelength, line.Weight)
	}

	b.fmin = [3]int32{int32(fmin.H), int32(fmin.K), int32(fmin.L)}
	b.fdim = [3]int32{
		int32(fmax.H - fmin.H + 1),
		int32(fmax.K - fmin.K + 1),
		int32(fmax.L - fmin.L + 1),
	}
	b.clampFlag = 0
	if req.Table.ClampsToBounds() {
		b.clampFlag = 1
	}
	b.oversample = int32(req.Opts.Oversample)
	b.domainCount = int32(len(domains))
	b.lineCount = int32(len(req.Beam.Spectrum))
	b.width = int32(req.Detector.PixelsFast)

	b.releaseBuffers()
	if err := b.uploadBuffers(params, domainData, spectrumData, grid, req.Detector.PixelCount()); err != nil {
		b.releaseBuffers()
		return err
	}

	b.req = req
	return nil
}

func putVec3(params []float64, base int, v types.Vec3) {
	params[base] = v[0]
	params[base+1] = v[1]
	params[base+2] = v[2]
}

func (b *clBackend) uploadBuffers(params, domains, spectrum, grid []float64, pixelCount int) error {
	var err error
	if b.paramBuf, err = b.writeRealBuffer(params); err != nil {
		return fmt.Errorf("opencl: upload params: %v", err)
	}
	if b.domainBuf, err = b.writeRealBuffer(domains); err != nil {
		return fmt.Errorf("opencl: upload domains: %v", err)
	}
	if b.spectrumBuf, err = b.writeRealBuffer(spectrum); err != nil {
		return fmt.Errorf("opencl: upload spectrum: %v", err)
	}
	if b.gridBuf, err = b.writeRealBuffer(grid); err != nil {
		return fmt.Errorf("opencl: upload structure factor grid: %v", err)
	}

	if b.pixelBuf, err = b.context.CreateEmptyBuffer(cl.MemWriteOnly, pixelCount*b.realSize()); err != nil {
		return fmt.Errorf("opencl: allocate pixel buffer: %v", err)
	}
	if b.precision == sim.PrecisionSingle {
		b.pixels32 = make([]float32, pixelCount)
	}
	return nil
}

func (b *clBackend) realSize() int {
	if b.precision == sim.PrecisionSingle {
		return 4
	}
	return 8
}

// Upload a read-only real buffer in the kernel's precision.
func (b *clBackend) writeRealBuffer(data []float64) (*cl.MemObject, error) {
	var ptr unsafe.Pointer
	byteLen := len(data) * b.realSize()
	if byteLen == 0 {
		byteLen = b.realSize()
	}

	var narrow []float32
	if b.precision == sim.PrecisionSingle {
		narrow = make([]float32, len(data))
		for i, v := range data {
			narrow[i] = float32(v)
		}
		if len(narrow) > 0 {
			ptr = unsafe.Pointer(&narrow[0])
		}
	} else if len(data) > 0 {
		ptr = unsafe.Pointer(&data[0])
	}

	buf, err := b.context.CreateEmptyBuffer(cl.MemReadOnly, byteLen)
	if err != nil {
		return nil, err
	}
	if ptr != nil {
		if _, err := b.queue.EnqueueWriteBuffer(buf, true, 0, len(data)*b.realSize(), ptr, nil); err != nil {
			buf.Release()
			return nil, err
		}
	}
	return buf, nil
}

// Integrate all pixels in the block on the device and read them back into
// the shared frame buffer.
func (b *clBackend) TraceBlock(blockReq sim.BlockRequest) error {
	if b.req == nil {
		return fmt.Errorf("opencl backend: %w", sim.ErrMissingInput)
	}
	if blockReq.BlockH == 0 {
		return nil
	}

	start := time.Now()

	err := b.kernel.SetArgs(
		b.paramBuf, b.domainBuf, b.spectrumBuf, b.gridBuf,
		b.fmin[0], b.fmin[1], b.fmin[2],
		b.fdim[0], b.fdim[1], b.fdim[2],
		b.clampFlag,
		b.oversample,
		b.domainCount,
		b.lineCount,
		b.width,
		int32(blockReq.BlockY),
		int32(blockReq.BlockH),
		b.pixelBuf,
	)
	if err != nil {
		return fmt.Errorf("opencl: set kernel args: %v", err)
	}

	global := []int{int(blockReq.BlockH) * int(b.width)}
	if _, err := b.queue.EnqueueNDRangeKernel(b.kernel, nil, global, nil, nil); err != nil {
		return fmt.Errorf("opencl: enqueue kernel: %v", err)
	}

	if err := b.readBlock(blockReq); err != nil {
		return err
	}

	b.stats.BlockH = blockReq.BlockH
	b.stats.RenderTime = time.Since(start)
	return nil
}

func (b *clBackend) readBlock(blockReq sim.BlockRequest) error {
	width := int(b.width)
	offset := int(blockReq.BlockY) * width
	count := int(blockReq.BlockH) * width

	if b.precision == sim.PrecisionSingle {
		if _, err := b.queue.EnqueueReadBuffer(
			b.pixelBuf, true, offset*4, count*4,
			unsafe.Pointer(&b.pixels32[offset]), nil,
		); err != nil {
			return fmt.Errorf("opencl: read pixels: %v", err)
		}
		for i := offset; i < offset+count; i++ {
			b.req.Pixels[i] = float64(b.pixels32[i])
		}
		return nil
	}

	if _, err := b.queue.EnqueueReadBuffer(
		b.pixelBuf, true, offset*8, count*8,
		unsafe.Pointer(&b.req.Pixels[offset]), nil,
	); err != nil {
		return fmt.Errorf("opencl: read pixels: %v", err)
	}
	return nil
}

// Retrieve last block statistics.
func (b *clBackend) Stats() *sim.Stats {
	return b.stats
}

// Shutdown backend and release all device handles.
func (b *clBackend) Close() {
	b.releaseBuffers()
	if b.kernel != nil {
		b.kernel.Release()
		b.kernel = nil
	}
	if b.program != nil {
		b.program.Release()
		b.program = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.context != nil {
		b.context.Release()
		b.context = nil
	}
	b.req = nil
}

func (b *clBackend) releaseBuffers() {
	for _, buf := range []**cl.MemObject{&b.paramBuf, &b.domainBuf, &b.spectrumBuf, &b.gridBuf, &b.pixelBuf} {
		if *buf != nil {
			(*buf).Release()
			*buf = nil
		}
	}
	b.pixels32 = nil
}
