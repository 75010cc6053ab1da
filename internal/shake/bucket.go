package shake

// DefaultGravityOffset is the resting |x|+|y|+|z| of a sensor reporting milli-g.
const DefaultGravityOffset = 1000

// bucketLimits are exclusive upper bounds; a deviation at or above the last limit scores 6.
// Level 2 is never produced.
var bucketLimits = [...]struct {
	below int
	level int
}{
	{200, 0},
	{400, 1},
	{600, 3},
	{900, 4},
	{1200, 5},
}

// MaxBucketLevel is the score for deviations of 1200 and above.
const MaxBucketLevel = 6

// Bucket scores each sample independently against a fixed threshold table.
type Bucket struct {
	GravityOffset int
}

// Name implements Scorer.
func (Bucket) Name() string { return StrategyBucket }

// Score implements Scorer. The result is always one of 0, 1, 3, 4, 5, 6.
func (b Bucket) Score(s Sample) int {
	return BucketLevel(abs(abs(s.X) + abs(s.Y) + abs(s.Z) - b.GravityOffset))
}

// BucketLevel maps a non-negative deviation onto the level table.
func BucketLevel(deviation int) int {
	for _, l := range bucketLimits {
		if deviation < l.below {
			return l.level
		}
	}
	return MaxBucketLevel
}
