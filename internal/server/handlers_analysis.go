package server

import (
	"net/http"

	"github.com/jonathan/property-analyzer/internal/analysis"
	"github.com/jonathan/property-analyzer/internal/types"
)

// CompressResponse is the body of POST /api/compress.
type CompressResponse struct {
	*types.CompressedDocument
	Text  string  `json:"text"`
	Ratio float64 `json:"ratio"`
}

// handleAnalyze runs a full listing analysis
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.handleError(w, r, "", &ErrUnavailable{Service: "analysis pipeline"})
		return
	}

	var req analysis.Request
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.pipeline.Analyze(r.Context(), req)
	if err != nil {
		s.handleError(w, r, "物件分析に失敗しました", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handleAnalyzeStream runs an analysis and streams progress as "step"
// events followed by a "complete" event carrying the result.
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.handleError(w, r, "", &ErrUnavailable{Service: "analysis pipeline"})
		return
	}

	var req analysis.Request
	if !s.decodeJSON(w, r, &req) {
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}

	p := s.pipeline.WithProgress(func(event analysis.ProgressEvent) {
		if err := sse.WriteEvent("step", event); err != nil {
			s.logger.WarnContext(r.Context(), "failed to write SSE event", "error", err)
		}
	})

	result, err := p.Analyze(r.Context(), req)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "streamed analysis failed", "error", err)
		sse.WriteError(err.Error())
		return
	}
	sse.WriteComplete(result)
}

// handleCompress compresses pasted listing text without any AI call
func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.handleError(w, r, "", &ErrUnavailable{Service: "analysis pipeline"})
		return
	}

	var req types.CompressRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	doc, err := s.pipeline.Compress(r.Context(), req.Text, req.Budget)
	if err != nil {
		s.handleError(w, r, "", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, CompressResponse{
		CompressedDocument: doc,
		Text:               doc.Text(),
		Ratio:              doc.Ratio(),
	})
}
