// Package quality scores the deduplication pipeline against a hand-labeled
// sample. Annotators assign each report to the incident it truly describes;
// the engine's own assignments are compared pair by pair. The resulting
// precision/recall curve is what the tier thresholds are tuned against.
package quality

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// LabeledReport pairs the engine's incident assignment for one report with
// the annotator's. Labels are opaque strings (incident IDs or annotation
// keys); only equality matters.
type LabeledReport struct {
	URL       string `json:"url"`
	Assigned  string `json:"assigned"`
	Annotated string `json:"annotated"`
}

// Evaluation summarizes how the engine's grouping compares with the
// annotated one.
type Evaluation struct {
	Samples           int     `json:"samples"`
	AssignedClusters  int     `json:"assignedClusters"`
	AnnotatedClusters int     `json:"annotatedClusters"`
	PairPrecision     float64 `json:"pairPrecision"`
	PairRecall        float64 `json:"pairRecall"`
	PairF1            float64 `json:"pairF1"`
	AdjustedRand      float64 `json:"adjustedRand"`
	VariationOfInfo   float64 `json:"variationOfInfo"`
}

// LoadSample reads a labeled sample from a JSON file.
func LoadSample(path string) ([]LabeledReport, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labeled sample: %v", err)
	}
	var sample []LabeledReport
	if err := json.Unmarshal(raw, &sample); err != nil {
		return nil, fmt.Errorf("parse labeled sample %s: %v", path, err)
	}
	return sample, nil
}

// EvaluateSample scores a labeled sample. Every report needs both labels.
func EvaluateSample(sample []LabeledReport) (Evaluation, error) {
	assigned := make([]int, len(sample))
	annotated := make([]int, len(sample))
	assignedIDs := make(map[string]int)
	annotatedIDs := make(map[string]int)

	for i, rep := range sample {
		if rep.Assigned == "" || rep.Annotated == "" {
			return Evaluation{}, fmt.Errorf("report %q is missing a label", rep.URL)
		}
		assigned[i] = labelIndex(assignedIDs, rep.Assigned)
		annotated[i] = labelIndex(annotatedIDs, rep.Annotated)
	}
	return Evaluate(assigned, annotated)
}

// Evaluate compares two partitions of the same reports. assigned[i] and
// annotated[i] are the cluster labels of report i under the engine and the
// annotator respectively.
//
// Pairwise scores treat every report pair as one classification: a pair the
// engine groups together is a true positive when the annotator agrees and a
// false positive otherwise. Over-merging shows up as low precision,
// over-splitting as low recall.
func Evaluate(assigned, annotated []int) (Evaluation, error) {
	if len(assigned) != len(annotated) {
		return Evaluation{}, fmt.Errorf("label slices differ in length: %d vs %d", len(assigned), len(annotated))
	}
	if len(assigned) < 2 {
		return Evaluation{}, errors.New("need at least two labeled reports")
	}

	ct := buildContingency(assigned, annotated)
	ev := Evaluation{
		Samples:           ct.n,
		AssignedClusters:  len(ct.rowSums),
		AnnotatedClusters: len(ct.colSums),
	}
	ev.PairPrecision, ev.PairRecall, ev.PairF1 = pairwiseScores(ct)
	ev.AdjustedRand = adjustedRand(ct)
	ev.VariationOfInfo = variationOfInformation(ct)
	return ev, nil
}

// contingency counts reports per (assigned cluster, annotated cluster) cell.
// All three scores derive from it.
type contingency struct {
	cells   [][]int
	rowSums []int
	colSums []int
	n       int
}

func buildContingency(assigned, annotated []int) contingency {
	rowIdx := make(map[int]int)
	colIdx := make(map[int]int)
	for _, l := range assigned {
		if _, ok := rowIdx[l]; !ok {
			rowIdx[l] = len(rowIdx)
		}
	}
	for _, l := range annotated {
		if _, ok := colIdx[l]; !ok {
			colIdx[l] = len(colIdx)
		}
	}

	ct := contingency{
		cells:   make([][]int, len(rowIdx)),
		rowSums: make([]int, len(rowIdx)),
		colSums: make([]int, len(colIdx)),
		n:       len(assigned),
	}
	for i := range ct.cells {
		ct.cells[i] = make([]int, len(colIdx))
	}
	for k := range assigned {
		i, j := rowIdx[assigned[k]], colIdx[annotated[k]]
		ct.cells[i][j]++
		ct.rowSums[i]++
		ct.colSums[j]++
	}
	return ct
}

// pairwiseScores computes precision, recall and F1 over report pairs from
// the contingency table: pairs grouped in both partitions are sum C(n_ij, 2),
// pairs the engine grouped are sum C(a_i, 2), truly co-incident pairs are
// sum C(b_j, 2). An all-singleton partition merges nothing wrong, so its
// precision is 1 by convention (and likewise recall when no true pairs exist).
func pairwiseScores(ct contingency) (precision, recall, f1 float64) {
	var agreed, assignedPairs, annotatedPairs float64
	for i := range ct.cells {
		for j := range ct.cells[i] {
			agreed += comb2(ct.cells[i][j])
		}
	}
	for _, a := range ct.rowSums {
		assignedPairs += comb2(a)
	}
	for _, b := range ct.colSums {
		annotatedPairs += comb2(b)
	}

	precision, recall = 1.0, 1.0
	if assignedPairs > 0 {
		precision = agreed / assignedPairs
	}
	if annotatedPairs > 0 {
		recall = agreed / annotatedPairs
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// adjustedRand computes the Adjusted Rand Index between the two partitions.
//
// ARI = (Index - ExpectedIndex) / (MaxIndex - ExpectedIndex)
// with Index = sum C(n_ij, 2) over the contingency cells.
//
// Values range from -1 (worse than chance) to 1 (identical partitions);
// 0 means chance-level agreement.
func adjustedRand(ct contingency) float64 {
	var sumCells, sumRows, sumCols float64
	for i := range ct.cells {
		for j := range ct.cells[i] {
			sumCells += comb2(ct.cells[i][j])
		}
	}
	for _, a := range ct.rowSums {
		sumRows += comb2(a)
	}
	for _, b := range ct.colSums {
		sumCols += comb2(b)
	}

	total := comb2(ct.n)
	if total == 0 {
		return 0
	}
	expected := (sumRows * sumCols) / total
	max := 0.5 * (sumRows + sumCols)
	if math.Abs(max-expected) < 1e-12 {
		return 1.0
	}
	return (sumCells - expected) / (max - expected)
}

// variationOfInformation computes the VI distance between the partitions,
//
//	VI = H(assigned | annotated) + H(annotated | assigned)
//
// in bits. Lower is better; 0 means identical partitions.
func variationOfInformation(ct contingency) float64 {
	nf := float64(ct.n)
	var vi float64
	for i := range ct.cells {
		for j := range ct.cells[i] {
			nij := ct.cells[i][j]
			if nij == 0 {
				continue
			}
			pij := float64(nij) / nf
			vi -= pij * math.Log2(float64(nij)/float64(ct.colSums[j]))
			vi -= pij * math.Log2(float64(nij)/float64(ct.rowSums[i]))
		}
	}
	return vi
}

// comb2 is C(n, 2).
func comb2(n int) float64 {
	if n < 2 {
		return 0
	}
	return float64(n) * float64(n-1) / 2.0
}

func labelIndex(ids map[string]int, label string) int {
	if idx, ok := ids[label]; ok {
		return idx
	}
	idx := len(ids)
	ids[label] = idx
	return idx
}
