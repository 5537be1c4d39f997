package crossencoder

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/tuanhng/banking-rag-assistant/internal/core/domain"
)

// pairScorer scores (query, passage) pairs. Hidden behind an interface so
// the selection policy is testable without an ONNX runtime.
type pairScorer interface {
	ScorePairs(query string, texts []string) ([]float64, error)
	Close() error
}

// Reranker reorders retrieval candidates with a cross-encoder model. A
// reranker whose model failed to load stays inert: Ready reports false and
// the caller falls back to vector-search order.
type Reranker struct {
	modelName string
	scorer    pairScorer
	logger    *slog.Logger
}

// New loads the cross-encoder model. Load failures are logged and produce
// an inert reranker rather than an error so the service can still start.
func New(modelName, modelDir string, logger *slog.Logger) *Reranker {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reranker{modelName: modelName, logger: logger}

	scorer, err := newHugotScorer(modelName, modelDir)
	if err != nil {
		logger.Error("reranker_model_load_failed", "model", modelName, "error", err)
		return r
	}
	r.scorer = scorer
	logger.Info("reranker_model_loaded", "model", modelName)
	return r
}

func (r *Reranker) Ready() bool {
	return r != nil && r.scorer != nil
}

// Close releases the model session.
func (r *Reranker) Close() error {
	if r.scorer == nil {
		return nil
	}
	return r.scorer.Close()
}

// Rerank scores every candidate with usable text against query and returns
// the topN best by model score. Blank-text candidates are dropped: a
// retrieval score and a cross-encoder score are not comparable, so an
// unscored candidate cannot be ranked among scored ones. The input slice is
// never mutated. An empty query or a scoring failure falls back to the
// original order.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.Candidate, topN int) []domain.Candidate {
	if len(candidates) == 0 {
		return candidates
	}
	if !r.Ready() || query == "" {
		return truncate(candidates, topN)
	}

	scorable := make([]int, 0, len(candidates))
	texts := make([]string, 0, len(candidates))
	for i, cand := range candidates {
		if strings.TrimSpace(cand.Text) == "" {
			continue
		}
		scorable = append(scorable, i)
		texts = append(texts, cand.Text)
	}
	if len(scorable) == 0 {
		return truncate(candidates, topN)
	}

	scores, err := r.scorer.ScorePairs(query, texts)
	if err != nil || len(scores) != len(scorable) {
		r.logger.Warn("rerank_scoring_failed", "model", r.modelName, "candidates", len(texts), "error", err)
		return truncate(candidates, topN)
	}

	reranked := make([]domain.Candidate, 0, len(scorable))
	for k, idx := range scorable {
		cand := candidates[idx]
		score := scores[k]
		cand.RerankScore = &score
		reranked = append(reranked, cand)
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].FinalScore() > reranked[j].FinalScore()
	})
	return truncate(reranked, topN)
}

func truncate(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
