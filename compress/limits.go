package compress

import "github.com/valkeymetrics/tsdb/internal/pool"

// maxDecompressedSize bounds how large a single Decompress call is
// willing to produce. It rides on the same ceiling internal/pool uses
// for its chunk buffers (CREATE-SERIES's chunk size limit) with
// headroom for compression ratio, so a corrupted or adversarial
// payload claiming an enormous decoded size is rejected before it can
// exhaust memory on behalf of one chunk.
const maxDecompressedSize = pool.ChunkBufferMaxThreshold * 8
