// Package wgpu provides a GPU compute backend using gogpu/wgpu.
//
// Kernels are WGSL compute shaders. A program build compiles the source to
// SPIR-V with gogpu/naga and creates a shader module on the device; compiled
// modules are cached by source hash, so repeated runs of the same kernel skip
// the compiler.
//
// # Platforms and devices
//
// Each HAL API (Vulkan by default) is one platform; its adapters are the
// devices. A context is bound to exactly one device and opens it when the
// context is created.
//
// # Binding convention
//
// Kernel arguments map onto bind group 0:
//
//   - uint32 scalars are packed in argument order into a uniform block at
//     binding 0, padded to 16 bytes;
//   - buffers take bindings 1, 2, ... in argument order, read-only storage
//     for MemReadOnly buffers and read-write storage otherwise.
//
// A launch of L lanes dispatches ceil(L / workgroup_size.x) workgroups. Past
// 65535 workgroups the grid folds into a second dimension, so kernels compute
// their lane as
//
//	lane = gid.x + gid.y * num_workgroups.x * workgroup_size.x
//
// and must ignore lanes at or beyond their length argument.
//
// # Synchronization
//
// Enqueued work is recorded, not submitted. Queue.Finish encodes every
// recorded command into one command buffer, submits it, waits without
// timeout for the queue to report the submission index complete and copies
// staged readbacks into their host slices.
//
// # Shared devices
//
// NewShared wraps a device owned by an application (for example a gogpu
// window) through gpucontext.DeviceProvider. Shared devices are never
// destroyed by this package.
package wgpu
