package crossencoder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

// pairSeparator joins query and passage into the single-sequence form the
// classification tokenizer expects.
const pairSeparator = " [SEP] "

// hugotScorer runs a cross-encoder classification model on the pure Go
// ONNX backend.
type hugotScorer struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
}

func newHugotScorer(modelName, modelDir string) (*hugotScorer, error) {
	modelPath, err := prepareModel(modelName, modelDir)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("create hugot session: %w", err)
	}

	config := hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      "crossencoder-reranker",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("create reranker pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("create reranker pipeline: %w", err)
	}

	return &hugotScorer{session: session, pipeline: pipeline}, nil
}

func (s *hugotScorer) ScorePairs(query string, texts []string) ([]float64, error) {
	pairs := make([]string, len(texts))
	for i, text := range texts {
		pairs[i] = query + pairSeparator + text
	}

	result, err := s.pipeline.RunPipeline(pairs)
	if err != nil {
		return nil, fmt.Errorf("run reranker pipeline: %w", err)
	}
	if len(result.ClassificationOutputs) != len(pairs) {
		return nil, fmt.Errorf("reranker returned %d outputs for %d pairs", len(result.ClassificationOutputs), len(pairs))
	}

	scores := make([]float64, len(pairs))
	for i, outputs := range result.ClassificationOutputs {
		if len(outputs) == 0 {
			return nil, fmt.Errorf("reranker returned no score for pair %d", i)
		}
		scores[i] = float64(outputs[0].Score)
	}
	return scores, nil
}

func (s *hugotScorer) Close() error {
	return s.session.Destroy()
}

// prepareModel downloads the ONNX model into modelDir unless a local copy
// already exists.
func prepareModel(modelName, modelDir string) (string, error) {
	local := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}
	downloadOptions := hugot.NewDownloadOptions()
	downloadOptions.OnnxFilePath = "onnx/model.onnx"
	downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("download reranker model: %w", err)
	}
	return downloadedPath, nil
}
