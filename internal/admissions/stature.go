package admissions

import (
	"math/rand/v2"

	"github.com/starford/chancery/internal/models"
)

// Stature score ranges, inclusive.
const (
	doctrineMin, doctrineMax   = 65, 94
	weightMin, weightMax       = 50, 89
	characterMin, characterMax = 80, 99
	visionMin, visionMax       = 40, 89
)

// RandomStature draws a uniformly random stature profile.
func RandomStature() models.StatureMetrics {
	return models.StatureMetrics{
		Doctrine:  between(doctrineMin, doctrineMax),
		Weight:    between(weightMin, weightMax),
		Character: between(characterMin, characterMax),
		Vision:    between(visionMin, visionMax),
	}
}

func between(lo, hi int) int {
	return lo + rand.IntN(hi-lo+1)
}
