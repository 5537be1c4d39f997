package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tuanhng/banking-rag-assistant/internal/core/domain"
	"github.com/tuanhng/banking-rag-assistant/internal/core/ports"
)

type searcherFake struct {
	hits  []domain.SearchHit
	err   error
	limit int
}

func (f *searcherFake) Search(_ context.Context, _ []float32, limit int) ([]domain.SearchHit, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type rerankerFake struct {
	ready  bool
	scores map[string]float64
	calls  int
}

func (f *rerankerFake) Ready() bool { return f.ready }

func (f *rerankerFake) Rerank(_ context.Context, _ string, candidates []domain.Candidate, topN int) []domain.Candidate {
	f.calls++
	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		score := f.scores[out[i].ID]
		out[i].RerankScore = &score
	}
	// Highest rerank score first, insertion order preserved for ties.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && *out[j].RerankScore > *out[j-1].RerankScore; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

type graphFake struct {
	nodes   map[string]domain.GraphNode
	parents map[string]string
}

func (g *graphFake) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

func (g *graphFake) Node(id string) (domain.GraphNode, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

func (g *graphFake) ParentDocument(chunkID string) (domain.GraphNode, bool) {
	docID, ok := g.parents[chunkID]
	if !ok {
		return domain.GraphNode{}, false
	}
	node, ok := g.nodes[docID]
	return node, ok
}

type graphProviderFake struct {
	graph ports.GraphAccessor
}

func (p *graphProviderFake) Current() ports.GraphAccessor { return p.graph }

func hit(id string, score float64, text string) domain.SearchHit {
	return domain.SearchHit{
		ID:    id,
		Score: score,
		Payload: domain.HitPayload{
			OriginalText: text,
			DocumentName: "doc-" + id,
			NodeType:     domain.NodeTypeChunk,
		},
	}
}

func newCompiler(searcher ports.VectorSearcher, reranker ports.Reranker, graph ports.GraphAccessor) *ContextCompiler {
	return NewContextCompiler(searcher, reranker, &graphProviderFake{graph: graph}, nil)
}

func TestCompileEmptySearchReturnsEmptyContext(t *testing.T) {
	compiler := newCompiler(&searcherFake{}, nil, nil)

	got := compiler.Compile(context.Background(), "q", []float32{0.1}, 5, false, 3)
	if got.Text != "" {
		t.Fatalf("expected empty text, got %q", got.Text)
	}
	if len(got.Sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(got.Sources))
	}
}

func TestCompileSearchFailureTreatedAsZeroHits(t *testing.T) {
	compiler := newCompiler(&searcherFake{err: errors.New("qdrant down")}, nil, nil)

	got := compiler.Compile(context.Background(), "q", []float32{0.1}, 5, false, 3)
	if got.Text != "" || len(got.Sources) != 0 {
		t.Fatalf("expected empty result on provider failure, got %+v", got)
	}
}

func TestCompileDeterministicWithoutRerank(t *testing.T) {
	hits := []domain.SearchHit{
		hit("a", 0.91, "lãi suất tiết kiệm kỳ hạn 6 tháng"),
		hit("b", 0.85, "điều kiện mở thẻ tín dụng"),
		hit("c", 0.80, "phí chuyển khoản liên ngân hàng"),
		hit("d", 0.77, "hạn mức rút tiền ATM"),
		hit("e", 0.70, "quy định vay thế chấp"),
	}
	compiler := newCompiler(&searcherFake{hits: hits}, nil, nil)

	first := compiler.Compile(context.Background(), "q", []float32{0.1}, 5, false, 3)
	second := compiler.Compile(context.Background(), "q", []float32{0.1}, 5, false, 3)

	if first.Text != second.Text {
		t.Fatalf("compile is not deterministic")
	}
	if len(first.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(first.Sources))
	}
	wantScores := []float64{0.91, 0.85, 0.80}
	for i, source := range first.Sources {
		if source.Score != wantScores[i] {
			t.Fatalf("source %d score = %v, want %v", i, source.Score, wantScores[i])
		}
	}
	if got := strings.Count(first.Text, "Trích dẫn từ tài liệu"); got != 3 {
		t.Fatalf("expected 3 quoted blocks, got %d", got)
	}
	if got := strings.Count(first.Text, "---"); got != 2 {
		t.Fatalf("expected 2 delimiters between 3 blocks, got %d", got)
	}
}

func TestCompileDeduplicatesIdenticalTextKeepingFirstScore(t *testing.T) {
	hits := []domain.SearchHit{
		hit("a", 0.9, "Lãi suất tiết kiệm là 5%/năm"),
		hit("b", 0.6, "Lãi suất tiết kiệm là 5%/năm"),
	}
	compiler := newCompiler(&searcherFake{hits: hits}, nil, nil)

	got := compiler.Compile(context.Background(), "lãi suất", []float32{0.1}, 5, false, 5)
	if len(got.Sources) != 1 {
		t.Fatalf("expected 1 deduplicated source, got %d", len(got.Sources))
	}
	if got.Sources[0].Score != 0.9 {
		t.Fatalf("expected first-encountered score 0.9, got %v", got.Sources[0].Score)
	}
	if strings.Count(got.Text, "Lãi suất tiết kiệm là 5%/năm") != 1 {
		t.Fatalf("expected text to appear exactly once:\n%s", got.Text)
	}
}

func TestCompileDiscardsBlankTextHits(t *testing.T) {
	hits := []domain.SearchHit{
		hit("a", 0.9, "   "),
		hit("b", 0.8, ""),
	}
	compiler := newCompiler(&searcherFake{hits: hits}, nil, nil)

	got := compiler.Compile(context.Background(), "q", []float32{0.1}, 5, false, 3)
	if got.Text != "" || len(got.Sources) != 0 {
		t.Fatalf("expected empty result when every hit is blank, got %+v", got)
	}
}

func TestCompilePayloadDefaults(t *testing.T) {
	hits := []domain.SearchHit{{
		ID:      "a",
		Score:   0.5,
		Payload: domain.HitPayload{OriginalText: "nội dung"},
	}}
	compiler := newCompiler(&searcherFake{hits: hits}, nil, nil)

	got := compiler.Compile(context.Background(), "q", []float32{0.1}, 5, false, 3)
	if len(got.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(got.Sources))
	}
	if got.Sources[0].Source != domain.DefaultDocumentName {
		t.Fatalf("expected default document name, got %q", got.Sources[0].Source)
	}
	if got.Sources[0].Type != domain.DefaultNodeType {
		t.Fatalf("expected default node type, got %q", got.Sources[0].Type)
	}
}

func TestCompileRerankFallbackMatchesDisabledRerank(t *testing.T) {
	hits := []domain.SearchHit{
		hit("a", 0.91, "một"),
		hit("b", 0.85, "hai"),
		hit("c", 0.80, "ba"),
	}
	unavailable := &rerankerFake{ready: false}
	withBroken := newCompiler(&searcherFake{hits: hits}, unavailable, nil)
	withoutRerank := newCompiler(&searcherFake{hits: hits}, nil, nil)

	enabled := withBroken.Compile(context.Background(), "q", []float32{0.1}, 5, true, 2)
	disabled := withoutRerank.Compile(context.Background(), "q", []float32{0.1}, 5, false, 2)

	if enabled.Text != disabled.Text {
		t.Fatalf("fallback output differs from pass-through:\n%q\nvs\n%q", enabled.Text, disabled.Text)
	}
	if len(enabled.Sources) != 2 {
		t.Fatalf("expected truncation to top 2, got %d", len(enabled.Sources))
	}
	if unavailable.calls != 0 {
		t.Fatalf("unavailable reranker must not be invoked, got %d calls", unavailable.calls)
	}
}

func TestCompileRerankScoreSupersedesVectorScore(t *testing.T) {
	hits := []domain.SearchHit{
		hit("a", 0.91, "một"),
		hit("b", 0.85, "hai"),
	}
	reranker := &rerankerFake{
		ready:  true,
		scores: map[string]float64{"a": 1.5, "b": 7.25},
	}
	compiler := newCompiler(&searcherFake{hits: hits}, reranker, nil)

	got := compiler.Compile(context.Background(), "q", []float32{0.1}, 5, true, 2)
	if len(got.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(got.Sources))
	}
	if got.Sources[0].Score != 7.25 || got.Sources[1].Score != 1.5 {
		t.Fatalf("expected rerank scores [7.25 1.5], got [%v %v]", got.Sources[0].Score, got.Sources[1].Score)
	}
	if !strings.Contains(got.Text, "7.2500") {
		t.Fatalf("expected rerank score in prompt text:\n%s", got.Text)
	}
	if strings.Contains(got.Text, "0.9100") || strings.Contains(got.Text, "0.8500") {
		t.Fatalf("vector-search scores must not leak into prompt text once reranked:\n%s", got.Text)
	}
}

func TestCompileSnippetTruncation(t *testing.T) {
	long := strings.Repeat("a", 450)
	short := "ngắn gọn"
	hits := []domain.SearchHit{
		hit("a", 0.9, long),
		hit("b", 0.8, short),
	}
	compiler := newCompiler(&searcherFake{hits: hits}, nil, nil)

	got := compiler.Compile(context.Background(), "q", []float32{0.1}, 5, false, 5)
	if got.Sources[0].ContentSnippet != long[:300]+"..." {
		t.Fatalf("expected 300-char snippet with ellipsis, got %d chars", len(got.Sources[0].ContentSnippet))
	}
	if got.Sources[1].ContentSnippet != short {
		t.Fatalf("short text must pass through unchanged, got %q", got.Sources[1].ContentSnippet)
	}
}

func TestCompileChunkInheritsParentDocumentSummary(t *testing.T) {
	graph := &graphFake{
		nodes: map[string]domain.GraphNode{
			"chunk:tietkiem_0": {ID: "chunk:tietkiem_0", Type: domain.NodeTypeChunk, SourceDocumentID: "doc:tietkiem"},
			"doc:tietkiem":     {ID: "doc:tietkiem", Type: domain.NodeTypeDocument, Name: "tietkiem", Summary: "Tóm tắt ngắn"},
		},
		parents: map[string]string{"chunk:tietkiem_0": "doc:tietkiem"},
	}
	hits := []domain.SearchHit{{
		ID:    "a",
		Score: 0.9,
		Payload: domain.HitPayload{
			OriginalText: "Thể lệ gửi tiết kiệm kỳ hạn 12 tháng",
			GraphNodeID:  "chunk:tietkiem_0",
			DocumentName: "tietkiem",
			NodeType:     domain.NodeTypeChunk,
		},
	}}
	compiler := newCompiler(&searcherFake{hits: hits}, nil, graph)

	got := compiler.Compile(context.Background(), "tiết kiệm", []float32{0.1}, 5, false, 3)
	if !strings.Contains(got.Text, "(Tóm tắt của tài liệu 'tietkiem': Tóm tắt ngắn)") {
		t.Fatalf("expected summary enrichment in prompt text:\n%s", got.Text)
	}
	if got.Sources[0].DocumentSummary != "Tóm tắt ngắn" {
		t.Fatalf("expected descriptor to carry document summary, got %q", got.Sources[0].DocumentSummary)
	}
}

func TestCompileSummarySkippedWhenContainedOrTooLong(t *testing.T) {
	contained := "đã có sẵn trong chunk"
	tooLong := strings.Repeat("x", 300)
	graph := &graphFake{
		nodes: map[string]domain.GraphNode{
			"chunk:a": {ID: "chunk:a", Type: domain.NodeTypeChunk, SourceDocumentID: "doc:a"},
			"doc:a":   {ID: "doc:a", Type: domain.NodeTypeDocument, Summary: contained},
			"chunk:b": {ID: "chunk:b", Type: domain.NodeTypeChunk, SourceDocumentID: "doc:b"},
			"doc:b":   {ID: "doc:b", Type: domain.NodeTypeDocument, Summary: tooLong},
		},
		parents: map[string]string{"chunk:a": "doc:a", "chunk:b": "doc:b"},
	}
	hits := []domain.SearchHit{
		{ID: "a", Score: 0.9, Payload: domain.HitPayload{
			OriginalText: "nội dung " + contained, GraphNodeID: "chunk:a", DocumentName: "a", NodeType: domain.NodeTypeChunk,
		}},
		{ID: "b", Score: 0.8, Payload: domain.HitPayload{
			OriginalText: "nội dung khác", GraphNodeID: "chunk:b", DocumentName: "b", NodeType: domain.NodeTypeChunk,
		}},
	}
	compiler := newCompiler(&searcherFake{hits: hits}, nil, graph)

	got := compiler.Compile(context.Background(), "q", []float32{0.1}, 5, false, 5)
	for i, source := range got.Sources {
		if source.DocumentSummary != "" {
			t.Fatalf("source %d must not carry a summary, got %q", i, source.DocumentSummary)
		}
	}
	if strings.Contains(got.Text, "Tóm tắt của tài liệu") {
		t.Fatalf("no summary enrichment expected:\n%s", got.Text)
	}
}

func TestCompileDocumentSummaryNodeCarriesKeywords(t *testing.T) {
	graph := &graphFake{
		nodes: map[string]domain.GraphNode{
			"doc:vay": {ID: "doc:vay", Type: domain.NodeTypeDocument, Keywords: "vay, thế chấp, lãi suất"},
		},
	}
	hits := []domain.SearchHit{{
		ID:    "a",
		Score: 0.9,
		Payload: domain.HitPayload{
			OriginalText: "Tổng quan sản phẩm vay thế chấp",
			GraphNodeID:  "doc:vay",
			DocumentName: "vay",
			NodeType:     domain.NodeTypeDocumentSummary,
		},
	}}
	compiler := newCompiler(&searcherFake{hits: hits}, nil, graph)

	got := compiler.Compile(context.Background(), "vay", []float32{0.1}, 5, false, 3)
	if !strings.Contains(got.Text, "Các từ khóa liên quan của tài liệu: vay, thế chấp, lãi suất") {
		t.Fatalf("expected keyword enrichment:\n%s", got.Text)
	}
	if got.Sources[0].DocumentKeywords != "vay, thế chấp, lãi suất" {
		t.Fatalf("expected descriptor keywords, got %q", got.Sources[0].DocumentKeywords)
	}
}

func TestCompileGraphMissSkipsEnrichment(t *testing.T) {
	graph := &graphFake{nodes: map[string]domain.GraphNode{}}
	hits := []domain.SearchHit{{
		ID:    "a",
		Score: 0.9,
		Payload: domain.HitPayload{
			OriginalText: "nội dung",
			GraphNodeID:  "chunk:missing",
			DocumentName: "doc",
			NodeType:     domain.NodeTypeChunk,
		},
	}}
	compiler := newCompiler(&searcherFake{hits: hits}, nil, graph)

	got := compiler.Compile(context.Background(), "q", []float32{0.1}, 5, false, 3)
	if len(got.Sources) != 1 {
		t.Fatalf("graph miss must not drop the candidate, got %d sources", len(got.Sources))
	}
	if got.Sources[0].DocumentSummary != "" || got.Sources[0].DocumentKeywords != "" {
		t.Fatalf("graph miss must omit optional fields, got %+v", got.Sources[0])
	}
}

func TestCompileScoreFormattedToFourDecimals(t *testing.T) {
	hits := []domain.SearchHit{hit("a", 0.91, "nội dung")}
	compiler := newCompiler(&searcherFake{hits: hits}, nil, nil)

	got := compiler.Compile(context.Background(), "q", []float32{0.1}, 5, false, 3)
	want := fmt.Sprintf("Điểm liên quan: %.4f", 0.91)
	if !strings.Contains(got.Text, want) {
		t.Fatalf("expected %q in prompt text:\n%s", want, got.Text)
	}
}

func TestCompileReportsRerankMode(t *testing.T) {
	hits := []domain.SearchHit{hit("a", 0.9, "nội dung")}

	tests := []struct {
		name          string
		reranker      ports.Reranker
		rerankEnabled bool
		want          string
	}{
		{"disabled", nil, false, domain.RerankModeDisabled},
		{"passthrough", &rerankerFake{ready: false}, true, domain.RerankModePassthrough},
		{"cross_encoder", &rerankerFake{ready: true, scores: map[string]float64{"a": 1.0}}, true, domain.RerankModeCrossEncoder},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			compiler := newCompiler(&searcherFake{hits: hits}, tc.reranker, nil)
			got := compiler.Compile(context.Background(), "q", []float32{0.1}, 5, tc.rerankEnabled, 3)
			if got.RerankMode != tc.want {
				t.Fatalf("expected rerank mode %q, got %q", tc.want, got.RerankMode)
			}
		})
	}
}

func TestCompileEmptyResultStillReportsRerankMode(t *testing.T) {
	compiler := newCompiler(&searcherFake{}, nil, nil)

	got := compiler.Compile(context.Background(), "q", []float32{0.1}, 5, false, 3)
	if got.RerankMode != domain.RerankModeDisabled {
		t.Fatalf("expected rerank mode %q, got %q", domain.RerankModeDisabled, got.RerankMode)
	}
}
