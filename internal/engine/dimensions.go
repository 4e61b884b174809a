package engine

import "fmt"

// finalDimensions resolves the requested size against the source size.
// A zero request on one axis is derived from the source aspect ratio
// (srcW/srcH, computed first) and truncated toward zero; derived values
// never drop below one pixel. Both axes zero keeps the source size, and two
// explicit values are used as is.
func finalDimensions(reqW, reqH, srcW, srcH int) (int, int, error) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0, fmt.Errorf("source image has invalid size %dx%d", srcW, srcH)
	}

	aspect := float64(srcW) / float64(srcH)
	switch {
	case reqW == 0 && reqH == 0:
		return srcW, srcH, nil
	case reqH == 0:
		h := int(float64(reqW) / aspect)
		return reqW, max(h, 1), nil
	case reqW == 0:
		w := int(float64(reqH) * aspect)
		return max(w, 1), reqH, nil
	default:
		return reqW, reqH, nil
	}
}
