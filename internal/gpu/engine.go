package gpu

import (
	"encoding/binary"
	"fmt"

	"github.com/robvanmieghem/go-opencl/cl"

	"github.com/tari-project/graxil/internal/job"
	"github.com/tari-project/graxil/internal/sha3x"
	"github.com/tari-project/graxil/internal/util"
)

const (
	// workGroupsPerCU is the occupancy multiplier for the global work size
	workGroupsPerCU = 8

	// inputWords is the header buffer size: 32 bytes as 4 ulongs
	inputWords = 4

	// outputWords is the result buffer: [found nonce, best hash top word]
	outputWords = 2
)

// MineResult is the outcome of one kernel launch
type MineResult struct {
	FoundNonce      uint64
	Found           bool
	HashesProcessed uint64
	BestDifficulty  uint64
}

// Engine drives the SHA3x kernel on one OpenCL device
type Engine struct {
	device  *Device
	context *cl.Context
	queue   *cl.CommandQueue
	program *cl.Program
	kernel  *cl.Kernel

	input  *cl.MemObject
	output *cl.MemObject

	globalSize int
	localSize  int
}

// NewEngine compiles the SHA3x kernel for a device and allocates its
// buffers. A build failure is fatal for this device only.
func NewEngine(device *Device) (*Engine, error) {
	context, err := cl.CreateContext([]*cl.Device{device.cl})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context for %s: %w", device.Name(), err)
	}

	queue, err := context.CreateCommandQueue(device.cl, 0)
	if err != nil {
		context.Release()
		return nil, fmt.Errorf("creating command queue for %s: %w", device.Name(), err)
	}

	program, err := context.CreateProgramWithSource([]string{kernelSource})
	if err != nil {
		queue.Release()
		context.Release()
		return nil, fmt.Errorf("creating program for %s: %w", device.Name(), err)
	}
	if err := program.BuildProgram([]*cl.Device{device.cl}, ""); err != nil {
		program.Release()
		queue.Release()
		context.Release()
		return nil, fmt.Errorf("building SHA3x kernel for %s: %w", device.Name(), err)
	}

	kernel, err := program.CreateKernel("sha3x")
	if err != nil {
		program.Release()
		queue.Release()
		context.Release()
		return nil, fmt.Errorf("creating kernel for %s: %w", device.Name(), err)
	}

	input, err := context.CreateEmptyBuffer(cl.MemReadOnly, inputWords*8)
	if err != nil {
		return nil, fmt.Errorf("allocating input buffer: %w", err)
	}
	output, err := context.CreateEmptyBuffer(cl.MemReadWrite, outputWords*8)
	if err != nil {
		return nil, fmt.Errorf("allocating output buffer: %w", err)
	}

	globalSize, localSize := workSizes(device.MaxComputeUnits(), device.MaxWorkGroupSize())
	util.Infof("OpenCL engine ready on %s: global=%d local=%d", device.Name(), globalSize, localSize)

	return &Engine{
		device:     device,
		context:    context,
		queue:      queue,
		program:    program,
		kernel:     kernel,
		input:      input,
		output:     output,
		globalSize: globalSize,
		localSize:  localSize,
	}, nil
}

// workSizes computes the launch geometry: local size is a quarter of the
// device's work group limit clamped to [64,256], with 8 work groups per
// compute unit.
func workSizes(computeUnits, maxWorkGroupSize int) (global, local int) {
	local = maxWorkGroupSize / 4
	if local < 64 {
		local = 64
	}
	if local > 256 {
		local = 256
	}
	global = computeUnits * workGroupsPerCU * local
	return global, local
}

// Device returns the engine's device
func (e *Engine) Device() *Device {
	return e.device
}

// GlobalSize returns the kernel launch width in work items
func (e *Engine) GlobalSize() int {
	return e.globalSize
}

// Mine runs one kernel launch over [nonceStart, nonceStart+globalSize×batchSize).
// The kernel reports the nonce with the minimal hash top word among those
// meeting the target; the full 32-byte hash is NOT returned and must be
// reconstructed on the host.
func (e *Engine) Mine(j *job.MiningJob, nonceStart uint64, batchSize uint32) (MineResult, error) {
	if len(j.MiningHash) != sha3x.HeaderSize {
		return MineResult{}, fmt.Errorf("invalid mining hash length: %d bytes", len(j.MiningHash))
	}

	// Header as 4 little-endian ulongs, matching the kernel's lane layout
	inputData := make([]byte, inputWords*8)
	copy(inputData, j.MiningHash)
	if _, err := e.queue.EnqueueWriteBufferByte(e.input, false, 0, inputData, nil); err != nil {
		return MineResult{}, fmt.Errorf("writing input buffer: %w", err)
	}

	// Reset output: no nonce, best top word at maximum
	outputData := make([]byte, outputWords*8)
	binary.LittleEndian.PutUint64(outputData[8:16], ^uint64(0))
	if _, err := e.queue.EnqueueWriteBufferByte(e.output, false, 0, outputData, nil); err != nil {
		return MineResult{}, fmt.Errorf("resetting output buffer: %w", err)
	}

	// The kernel compares hash top words against a target value, not a
	// difficulty
	targetValue := ^uint64(0)
	if j.TargetDifficulty > 0 {
		targetValue = ^uint64(0) / j.TargetDifficulty
	}

	if err := e.kernel.SetArgs(e.input, nonceStart, targetValue, batchSize, e.output); err != nil {
		return MineResult{}, fmt.Errorf("setting kernel args: %w", err)
	}

	if _, err := e.queue.EnqueueNDRangeKernel(e.kernel, nil, []int{e.globalSize}, []int{e.localSize}, nil); err != nil {
		return MineResult{}, fmt.Errorf("enqueueing kernel: %w", err)
	}
	if err := e.queue.Finish(); err != nil {
		return MineResult{}, fmt.Errorf("waiting for kernel: %w", err)
	}

	readback := make([]byte, outputWords*8)
	if _, err := e.queue.EnqueueReadBufferByte(e.output, true, 0, readback, nil); err != nil {
		return MineResult{}, fmt.Errorf("reading output buffer: %w", err)
	}

	foundNonce := binary.LittleEndian.Uint64(readback[0:8])
	bestTop := binary.LittleEndian.Uint64(readback[8:16])

	result := MineResult{
		HashesProcessed: uint64(e.globalSize) * uint64(batchSize),
	}
	if bestTop != ^uint64(0) {
		if bestTop == 0 {
			result.BestDifficulty = ^uint64(0)
		} else {
			result.BestDifficulty = ^uint64(0) / bestTop
		}
	}
	if foundNonce > 0 && result.BestDifficulty >= j.TargetDifficulty {
		result.FoundNonce = foundNonce
		result.Found = true
	}

	return result, nil
}

// SuggestedBatchSize scales the per-item batch with compute units and
// memory, clamped to [1000,10000].
func (e *Engine) SuggestedBatchSize() uint32 {
	computeUnits := uint32(e.device.MaxComputeUnits())
	memoryGB := float64(e.device.GlobalMemSize()) / (1024 * 1024 * 1024)

	batch := computeUnits * 1000
	memoryLimited := uint32(memoryGB * 1000)
	if memoryLimited < batch {
		batch = memoryLimited
	}
	if batch < 1000 {
		batch = 1000
	}
	if batch > 10000 {
		batch = 10000
	}
	return batch
}

// Release frees all OpenCL resources held by the engine
func (e *Engine) Release() {
	if e.output != nil {
		e.output.Release()
	}
	if e.input != nil {
		e.input.Release()
	}
	if e.kernel != nil {
		e.kernel.Release()
	}
	if e.program != nil {
		e.program.Release()
	}
	if e.queue != nil {
		e.queue.Release()
	}
	if e.context != nil {
		e.context.Release()
	}
}
