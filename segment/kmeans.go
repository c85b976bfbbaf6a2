package segment

import (
	"fmt"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"gonum.org/v1/gonum/mat"
)

// DefaultRestarts is the number of K-means restarts used to escape
// poor local minima, matching the discretizer's reference behavior.
const DefaultRestarts = 10

// observation tags a coordinate vector with its patch index so cluster
// membership can be mapped back to a flat label slice.
type observation struct {
	idx    int
	coords clusters.Coordinates
}

func (o observation) Coordinates() clusters.Coordinates { return o.coords }

func (o observation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// KMeansLabels clusters the rows of points into k groups with Euclidean
// K-means, running restarts independent initializations and keeping the
// partition with the lowest within-cluster sum of squares. Returns one
// label per row. Empty clusters are tolerated; k is clamped to the
// number of points.
func KMeansLabels(points *mat.Dense, k, restarts int) ([]int, error) {
	n, _ := points.Dims()
	if n == 0 {
		return nil, fmt.Errorf("segment: no points to cluster")
	}
	if k > n {
		k = n
	}
	labels := make([]int, n)
	if k <= 1 {
		return labels, nil
	}
	if restarts <= 0 {
		restarts = DefaultRestarts
	}

	dataset := make(clusters.Observations, n)
	for i := 0; i < n; i++ {
		dataset[i] = observation{idx: i, coords: clusters.Coordinates(points.RawRowView(i))}
	}

	best := -1.0
	var lastErr error
	for r := 0; r < restarts; r++ {
		km := kmeans.New()
		partition, err := km.Partition(dataset, k)
		if err != nil {
			lastErr = err
			continue
		}

		var wcss float64
		for _, c := range partition {
			for _, o := range c.Observations {
				wcss += o.Distance(c.Center)
			}
		}
		if best < 0 || wcss < best {
			best = wcss
			for ci, c := range partition {
				for _, o := range c.Observations {
					labels[o.(observation).idx] = ci
				}
			}
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("segment: k-means failed: %w", lastErr)
	}
	return labels, nil
}
