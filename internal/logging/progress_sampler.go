package logging

// unknownTotalInterval is the frame spacing of progress lines when the total
// frame count is not known.
const unknownTotalInterval = 500

// ProgressSampler suppresses repetitive per-frame progress logs while
// preserving signal when the completion percentage crosses a bucket boundary.
type ProgressSampler struct {
	bucketSize float64
	lastBucket int
	lastDone   int64
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether done of total frames warrants a progress line.
// A total of zero or less means unknown; every unknownTotalInterval frames is
// emitted instead.
func (s *ProgressSampler) ShouldLog(done, total int64) bool {
	if s == nil {
		return true
	}
	if total <= 0 {
		if done-s.lastDone >= unknownTotalInterval {
			s.lastDone = done
			return true
		}
		return false
	}
	percent := float64(done) / float64(total) * 100
	bucket := int(percent / s.bucketSize)
	if percent >= 100 {
		bucket = int(100 / s.bucketSize)
	}
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		s.lastDone = done
		return true
	}
	return false
}

// Reset clears the sampler state (e.g. when a new run starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastBucket = -1
	s.lastDone = 0
}
