//go:build !(amd64 || 386 || arm || mips || mipsle || wasm)

package pad

// CacheLine reserves a full cache line. Enabled on architectures where
// false sharing between adjacent monitor fields is comparatively expensive
// to detect and mitigate at the hardware level (arm64, s390x, ppc64,
// ppc64le, riscv64, loong64, mips64, mips64le, ...).
type CacheLine [CacheLineSize]byte
