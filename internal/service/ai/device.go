package ai

import (
	"os"

	"gocv.io/x/gocv"
)

// Compute devices a network can be bound to.
const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// SelectDevice resolves the configured device preference once at startup.
// "auto" picks CUDA when an NVIDIA driver is present and not masked, otherwise CPU.
func SelectDevice(preference string) string {
	switch preference {
	case DeviceCPU:
		return DeviceCPU
	case DeviceCUDA, "gpu":
		return DeviceCUDA
	}
	if cudaAvailable() {
		return DeviceCUDA
	}
	return DeviceCPU
}

func cudaAvailable() bool {
	if visible, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok && (visible == "" || visible == "-1") {
		return false
	}
	_, err := os.Stat("/dev/nvidiactl")
	return err == nil
}

// backendFor returns the DNN backend and target matching a device.
func backendFor(device string) (gocv.NetBackendType, gocv.NetTargetType) {
	if device == DeviceCUDA {
		return gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}
	return gocv.NetBackendDefault, gocv.NetTargetCPU
}
