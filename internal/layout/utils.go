// internal/layout/utils.go
package layout

import "math"

// ClampSize bounds size by min and an optional max. min wins when they conflict.
func ClampSize(size, min float64, max Extent) float64 {
	if max.Valid && size > max.Value {
		size = max.Value
	}
	if size < min {
		size = min
	}
	return size
}

// ResolvePercentage returns pct percent of base, or fallback when base is not finite.
func ResolvePercentage(pct, base, fallback float64) float64 {
	if math.IsNaN(base) || math.IsInf(base, 0) {
		return fallback
	}
	return pct * base / 100
}

// CalculateAvailableSpace returns the space left inside container on axis
// once box's margins, borders and paddings are taken out.
func CalculateAvailableSpace(container float64, axis Axis, box LayoutBox) float64 {
	return math.Max(0, container-box.Static(axis))
}

// SpaceDistribution is the shared model of justify-content and align-content.
type SpaceDistribution int

const (
	DistributeStart SpaceDistribution = iota
	DistributeEnd
	DistributeCenter
	DistributeSpaceBetween
	DistributeSpaceAround
	DistributeSpaceEvenly
	DistributeStretch
)

func parseSpaceDistribution(keyword string, def SpaceDistribution) SpaceDistribution {
	switch keyword {
	case "flex-start", "start", "left", "normal":
		return DistributeStart
	case "flex-end", "end", "right":
		return DistributeEnd
	case "center":
		return DistributeCenter
	case "space-between":
		return DistributeSpaceBetween
	case "space-around":
		return DistributeSpaceAround
	case "space-evenly":
		return DistributeSpaceEvenly
	case "stretch":
		return DistributeStretch
	}
	return def
}

// DistributeSpace returns the start offset of each size packed into
// available with gap between neighbours. When nothing is left over the
// items are packed at the start. Stretch behaves as start; callers grow
// the sizes themselves.
func DistributeSpace(available float64, sizes []float64, gap float64, dist SpaceDistribution) []float64 {
	n := len(sizes)
	positions := make([]float64, n)
	if n == 0 {
		return positions
	}

	used := gap * float64(n-1)
	for _, s := range sizes {
		used += s
	}
	free := available - used
	if free <= 0 || math.IsInf(available, 0) || math.IsNaN(available) {
		dist = DistributeStart
		free = 0
	}

	var offset, between float64
	switch dist {
	case DistributeEnd:
		offset = free
	case DistributeCenter:
		offset = free / 2
	case DistributeSpaceBetween:
		if n > 1 {
			between = free / float64(n-1)
		}
	case DistributeSpaceAround:
		between = free / float64(n)
		offset = between / 2
	case DistributeSpaceEvenly:
		between = free / float64(n+1)
		offset = between
	}

	pos := offset
	for i, s := range sizes {
		positions[i] = pos
		pos += s + gap + between
	}
	return positions
}
