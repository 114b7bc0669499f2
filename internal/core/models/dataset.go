package models

// Sample is a single labelled observation. Features are the flattened,
// normalised pixel values of one image; Label is the binary class id
// (1 = positive / abnormal, 0 = negative / healthy).
type Sample struct {
	Features []float64 `json:"features"`
	Label    int       `json:"label"`
}

// Dataset is an ordered, immutable-for-the-run collection of samples.
// All samples share the same feature dimensionality.
type Dataset struct {
	Name     string   `json:"name"`
	URI      string   `json:"uri"`
	InputDim int      `json:"input_dim"`
	Samples  []Sample `json:"samples"`
}

func (d *Dataset) Size() int {
	return len(d.Samples)
}

// Labels returns the label vector in sample order.
func (d *Dataset) Labels() []int {
	labels := make([]int, len(d.Samples))
	for i, s := range d.Samples {
		labels[i] = s.Label
	}
	return labels
}

// ClassCounts returns the number of negative and positive samples.
func (d *Dataset) ClassCounts() (negatives, positives int) {
	for _, s := range d.Samples {
		if s.Label == 1 {
			positives++
		} else {
			negatives++
		}
	}
	return negatives, positives
}

// Subset materialises the samples at the given indices, preserving order.
func (d *Dataset) Subset(indices []int) []Sample {
	subset := make([]Sample, len(indices))
	for i, idx := range indices {
		subset[i] = d.Samples[idx]
	}
	return subset
}

// Fold is one stratified train/test partition of a dataset's index space.
// TrainIdx and TestIdx are disjoint and together cover every index exactly
// once; both preserve the dataset's class proportions.
type Fold struct {
	Number   int   `json:"number"`
	TrainIdx []int `json:"train_idx"`
	TestIdx  []int `json:"test_idx"`
}
