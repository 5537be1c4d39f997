package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/tuanhng/banking-rag-assistant/internal/core/domain"
	"github.com/tuanhng/banking-rag-assistant/internal/core/ports"
)

// SearchUseCase exposes the retrieval path without generation: it returns
// the ranked source descriptors for display/audit.
type SearchUseCase struct {
	embedder      ports.Embedder
	compiler      *ContextCompiler
	searchLimit   int
	rerankEnabled bool
}

func NewSearchUseCase(embedder ports.Embedder, compiler *ContextCompiler, searchLimit int, rerankEnabled bool) *SearchUseCase {
	return &SearchUseCase{
		embedder:      embedder,
		compiler:      compiler,
		searchLimit:   searchLimit,
		rerankEnabled: rerankEnabled,
	}
}

func (uc *SearchUseCase) SearchSources(ctx context.Context, query string, topK int) (*domain.SourceSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search sources: %w: query is empty", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = 5
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed search query: %w", err)
	}

	searchLimit := uc.searchLimit
	if uc.rerankEnabled && uc.compiler.RerankAvailable() {
		if searchLimit < topK {
			searchLimit = topK * 2
		}
	} else {
		searchLimit = topK
	}

	compiled := uc.compiler.Compile(ctx, query, queryVector, searchLimit, uc.rerankEnabled, topK)
	return &domain.SourceSearchResult{
		Sources:    compiled.Sources,
		RerankMode: compiled.RerankMode,
	}, nil
}
