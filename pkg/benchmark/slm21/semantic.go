package slm21

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"zerospeech.io/zrc/pkg/benchmark"
)

// SemanticParams are the tunable knobs of the semantic task.
type SemanticParams struct {
	// Metric is the frame distance, cosine, euclidean or kl.
	Metric string `json:"metric"`
	// Pooling folds a feature matrix into one vector: min, max, mean, sum,
	// last, lastlast or off (off requires single-frame inputs).
	Pooling string `json:"pooling"`
	// NJobs caps the pooling worker pool.
	NJobs int `json:"n_jobs"`
}

func DefaultSemanticParams() SemanticParams {
	return SemanticParams{Metric: "euclidean", Pooling: "mean", NJobs: 4}
}

func poolFeatures(frames [][]float64, pooling string) ([]float64, error) {
	dim := len(frames[0])
	switch pooling {
	case "min", "max", "sum", "mean":
		out := make([]float64, dim)
		copy(out, frames[0])
		for _, frame := range frames[1:] {
			for i, v := range frame {
				switch pooling {
				case "min":
					if v < out[i] {
						out[i] = v
					}
				case "max":
					if v > out[i] {
						out[i] = v
					}
				default:
					out[i] += v
				}
			}
		}
		if pooling == "mean" {
			for i := range out {
				out[i] /= float64(len(frames))
			}
		}
		return out, nil
	case "last":
		return frames[len(frames)-1], nil
	case "lastlast":
		if len(frames) < 2 {
			return frames[len(frames)-1], nil
		}
		return frames[len(frames)-2], nil
	case "off":
		if len(frames) != 1 {
			return nil, fmt.Errorf("pooling off requires single-frame features, got %d frames", len(frames))
		}
		return frames[0], nil
	default:
		return nil, fmt.Errorf("unknown pooling %q", pooling)
	}
}

func vectorDistance(a, b []float64, metric string) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch %d != %d", len(a), len(b))
	}
	switch metric {
	case "cosine":
		var dot, na, nb float64
		for i := range a {
			dot += a[i] * b[i]
			na += a[i] * a[i]
			nb += b[i] * b[i]
		}
		if na == 0 || nb == 0 {
			return 1, nil
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
	case "euclidean":
		var sum float64
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return math.Sqrt(sum), nil
	case "kl":
		// symmetrised KL over softmax-normalized vectors
		pa, pb := softmax(a), softmax(b)
		var kl float64
		for i := range pa {
			kl += pa[i]*math.Log(pa[i]/pb[i]) + pb[i]*math.Log(pb[i]/pa[i])
		}
		return kl / 2, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", metric)
	}
}

func softmax(v []float64) []float64 {
	max := v[0]
	for _, x := range v[1:] {
		if x > max {
			max = x
		}
	}
	out := make([]float64, len(v))
	sum := 0.0
	for i, x := range v {
		out[i] = math.Exp(x - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// spearman returns the rank correlation of two equally sized samples, using
// average ranks for ties.
func spearman(x, y []float64) float64 {
	rx, ry := ranks(x), ranks(y)
	mx, my := mean(rx), mean(ry)
	var cov, vx, vy float64
	for i := range rx {
		dx, dy := rx[i]-mx, ry[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(vx*vy)
}

func ranks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return values[idx[i]] < values[idx[j]] })

	out := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && values[idx[j]] == values[idx[i]] {
			j++
		}
		// 1-based average rank over the tie run
		rank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			out[idx[k]] = rank
		}
		i = j
	}
	return out
}

// pooledToken is one audio token reduced to a single vector.
type pooledToken struct {
	Voice  string
	Vector []float64
}

// poolSubmission loads and pools every feature file named by the gold rows,
// keyed by word, in parallel.
func poolSubmission(ctx context.Context, featuresDir string, gold []semanticGoldRow, params SemanticParams) (map[string][]pooledToken, error) {
	var mu sync.Mutex
	byWord := map[string][]pooledToken{}

	eg, ctx := errgroup.WithContext(ctx)
	njobs := params.NJobs
	if njobs <= 0 {
		njobs = 1
	}
	eg.SetLimit(njobs)
	for i := range gold {
		row := gold[i]
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			frames, err := benchmark.LoadFeatureFile(filepath.Join(featuresDir, row.Filename+".txt"))
			if err != nil {
				return err
			}
			vector, err := poolFeatures(frames, params.Pooling)
			if err != nil {
				return fmt.Errorf("%s: %w", row.Filename, err)
			}
			mu.Lock()
			byWord[row.Word] = append(byWord[row.Word], pooledToken{Voice: row.Voice, Vector: vector})
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return byWord, nil
}

// librispeechDistance averages pairwise distances over all token crossings of
// the two words.
func librispeechDistance(a, b []pooledToken, metric string) (float64, error) {
	var sum float64
	n := 0
	for _, ta := range a {
		for _, tb := range b {
			d, err := vectorDistance(ta.Vector, tb.Vector, metric)
			if err != nil {
				return 0, err
			}
			sum += d
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("no token pairs to compare")
	}
	return sum / float64(n), nil
}

// syntheticDistance compares only tokens spoken by the same voice, then
// averages across voices.
func syntheticDistance(a, b []pooledToken, metric string) (float64, error) {
	byVoice := map[string][2][]pooledToken{}
	for _, t := range a {
		entry := byVoice[t.Voice]
		entry[0] = append(entry[0], t)
		byVoice[t.Voice] = entry
	}
	for _, t := range b {
		entry := byVoice[t.Voice]
		entry[1] = append(entry[1], t)
		byVoice[t.Voice] = entry
	}

	var sum float64
	n := 0
	for voice, entry := range byVoice {
		if len(entry[0]) == 0 || len(entry[1]) == 0 {
			return 0, fmt.Errorf("voice %s is missing one side of the pair", voice)
		}
		d, err := librispeechDistance(entry[0], entry[1], metric)
		if err != nil {
			return 0, err
		}
		sum += d
		n++
	}
	return sum / float64(n), nil
}

type semanticScoredPair struct {
	semanticPairRow
	Score float64
}

type semanticCorrelation struct {
	Type        string
	Dataset     string
	Correlation float64
}

// scoreSemantic computes model distances for every gold pair and correlates
// them with the human judgements per (type, dataset) group. Correlation is
// against relatedness when every pair of the group has one, against
// similarity otherwise, negated so that higher is better.
func scoreSemantic(pairs []semanticPairRow, tokens map[string]map[string][]pooledToken, params SemanticParams) ([]semanticScoredPair, []semanticCorrelation, error) {
	scored := make([]semanticScoredPair, 0, len(pairs))
	for _, pair := range pairs {
		words := tokens[pair.Type]
		a, oka := words[pair.Word1]
		b, okb := words[pair.Word2]
		if !oka || !okb {
			return nil, nil, fmt.Errorf("no features for pair %s / %s (%s)", pair.Word1, pair.Word2, pair.Type)
		}
		var score float64
		var err error
		if pair.Type == "synthetic" {
			score, err = syntheticDistance(a, b, params.Metric)
		} else {
			score, err = librispeechDistance(a, b, params.Metric)
		}
		if err != nil {
			return nil, nil, err
		}
		scored = append(scored, semanticScoredPair{semanticPairRow: pair, Score: score})
	}

	type groupKey struct{ Type, Dataset string }
	groups := map[groupKey][]semanticScoredPair{}
	order := []groupKey{}
	for _, p := range scored {
		key := groupKey{p.Type, p.Dataset}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], p)
	}

	correlations := make([]semanticCorrelation, 0, len(order))
	for _, key := range order {
		group := groups[key]
		useRelatedness := true
		for _, p := range group {
			if !p.HasRelatedness {
				useRelatedness = false
				break
			}
		}
		human := make([]float64, len(group))
		model := make([]float64, len(group))
		for i, p := range group {
			if useRelatedness {
				human[i] = -p.Relatedness
			} else {
				human[i] = -p.Similarity
			}
			model[i] = p.Score
		}
		correlations = append(correlations, semanticCorrelation{
			Type:        key.Type,
			Dataset:     key.Dataset,
			Correlation: 100 * spearman(human, model),
		})
	}
	return scored, correlations, nil
}

// runSemantic scores one evaluation set and writes the pairs and correlation
// result files.
func runSemantic(ctx context.Context, datasetDir, submissionDir, outputDir, set string, params SemanticParams) error {
	gold, err := loadSemanticGold(filepath.Join(datasetDir, "semantic", set, "gold.csv"))
	if err != nil {
		return fmt.Errorf("load semantic gold: %w", err)
	}
	pairs, err := loadSemanticPairs(filepath.Join(datasetDir, "semantic", set, "pairs.csv"))
	if err != nil {
		return fmt.Errorf("load semantic pairs: %w", err)
	}

	byType := map[string][]semanticGoldRow{}
	for _, row := range gold {
		byType[row.Type] = append(byType[row.Type], row)
	}
	tokens := map[string]map[string][]pooledToken{}
	for typ, rows := range byType {
		featuresDir := filepath.Join(submissionDir, "semantic", set, typ)
		pooled, err := poolSubmission(ctx, featuresDir, rows, params)
		if err != nil {
			return fmt.Errorf("pool %s/%s features: %w", set, typ, err)
		}
		tokens[typ] = pooled
	}

	scored, correlations, err := scoreSemantic(pairs, tokens, params)
	if err != nil {
		return err
	}

	pairRows := make([][]string, 0, len(scored))
	for _, p := range scored {
		pairRows = append(pairRows, []string{p.Type, p.Dataset, p.Word1, p.Word2, formatFloat(p.Score)})
	}
	pairsOut := filepath.Join(outputDir, fmt.Sprintf("score_semantic_%s_pairs.csv", set))
	if err := writeCSV(pairsOut, []string{"type", "dataset", "word_1", "word_2", "score"}, pairRows); err != nil {
		return err
	}

	corrRows := make([][]string, 0, len(correlations))
	for _, c := range correlations {
		corrRows = append(corrRows, []string{c.Type, c.Dataset, formatFloat(c.Correlation)})
	}
	corrOut := filepath.Join(outputDir, fmt.Sprintf("score_semantic_%s_correlation.csv", set))
	return writeCSV(corrOut, []string{"type", "dataset", "correlation"}, corrRows)
}

func validMetric(metric string) bool {
	switch strings.ToLower(metric) {
	case "cosine", "euclidean", "kl":
		return true
	}
	return false
}

func validPooling(pooling string) bool {
	switch strings.ToLower(pooling) {
	case "min", "max", "mean", "sum", "last", "lastlast", "off":
		return true
	}
	return false
}
