package chunk

import (
	"cmp"
	"fmt"

	"github.com/ls4154/chunklog/base"
	"github.com/ls4154/chunklog/env"
)

const (
	minReadBufferSize = 4 * DelimiterSize
	maxReadBufferSize = 4 << 20
)

// SanitizeOptions returns a copy of userOpt with defaults filled in and
// sizes clipped to supported ranges. A nil userOpt means defaults.
func SanitizeOptions(userOpt *base.Options) (*base.Options, error) {
	if userOpt == nil {
		userOpt = base.DefaultOptions()
	}

	opt := *userOpt

	if opt.ReadBufferSize == 0 {
		opt.ReadBufferSize = base.DefaultOptions().ReadBufferSize
	}
	opt.ReadBufferSize = clipToRange(opt.ReadBufferSize, minReadBufferSize, maxReadBufferSize)

	if opt.Compression != base.NoCompression && opt.Compression != base.SnappyCompression {
		return nil, fmt.Errorf("%w: invalid compression type %d", base.ErrInvalidArgument, opt.Compression)
	}

	if opt.Env == nil {
		opt.Env = env.DefaultEnv()
	}
	if opt.Logger == nil {
		opt.Logger = base.NopLogger
	}

	return &opt, nil
}

func clipToRange[T cmp.Ordered](val, minVal, maxVal T) T {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}
