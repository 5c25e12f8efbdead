package detector

import "slices"

// centerTracker clusters confirmed detections into possible centers. No two
// clusters it holds are within merge distance of each other.
type centerTracker struct {
	centers     []*FinderPattern
	mergeFactor float64
}

// register adds a detection at (x, y). It returns true if the detection was
// merged into an existing cluster and false if it started a new one.
func (t *centerTracker) register(x, y, moduleSize float64) bool {
	detection := FinderPattern{X: x, Y: y, EstimatedModuleSize: moduleSize, Count: 1}
	for idx, center := range t.centers {
		if center.aboutEquals(moduleSize, y, x, t.mergeFactor) {
			center.combineEstimate(detection)
			t.coalesce(idx)
			return true
		}
	}
	t.centers = append(t.centers, &detection)
	return false
}

// coalesce merges the cluster at idx with any cluster it has drifted onto.
// The earlier cluster survives so insertion order is kept.
func (t *centerTracker) coalesce(idx int) {
	for {
		moved := t.centers[idx]
		other := slices.IndexFunc(t.centers, func(c *FinderPattern) bool {
			return c != moved && c.aboutEquals(moved.EstimatedModuleSize, moved.Y, moved.X, t.mergeFactor)
		})
		if other < 0 {
			return
		}
		keep, drop := min(idx, other), max(idx, other)
		t.centers[keep].combineEstimate(*t.centers[drop])
		t.centers = slices.Delete(t.centers, drop, drop+1)
		idx = keep
	}
}

func (t *centerTracker) reset() {
	t.centers = nil
}

// confirmed returns the clusters seen at least quorum times, in insertion order.
func (t *centerTracker) confirmed(quorum int) []*FinderPattern {
	var out []*FinderPattern
	for _, c := range t.centers {
		if c.Count >= quorum {
			out = append(out, c)
		}
	}
	return out
}

// minModuleSize returns the smallest module size among all clusters, or 0
// when there are none.
func (t *centerTracker) minModuleSize() float64 {
	size := 0.0
	for i, c := range t.centers {
		if i == 0 || c.EstimatedModuleSize < size {
			size = c.EstimatedModuleSize
		}
	}
	return size
}
