package server

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/jonathan/property-analyzer/internal/llm"
	"github.com/jonathan/property-analyzer/internal/types"
)

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, types.HealthResponse{
		Status:             "healthy",
		Version:            s.settings.APIVersion,
		Timestamp:          s.now().Format("2006-01-02T15:04:05.000000"),
		GoogleCloudProject: s.settings.ProjectID,
	})
}

// handleModels lists the models clients may request
func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{"models": llm.Models()})
}

func (s *Server) llmRequest(prompt, model, system string, cfg *llm.GenerationConfig) llm.Request {
	return llm.Request{
		Prompt:            prompt,
		Model:             model,
		Tier:              llm.TierStandard,
		SystemInstruction: system,
		Config:            cfg,
	}
}

func generateResponse(resp *llm.Response) types.GenerateResponse {
	return types.GenerateResponse{
		Success:      true,
		Content:      resp.Content,
		Model:        resp.Model,
		Usage:        resp.Usage,
		FinishReason: resp.FinishReason,
	}
}

// handleGenerate produces a single completion
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.llm.Generate(r.Context(), s.llmRequest(req.Message, req.Model, req.SystemInstruction, req.Config))
	if err != nil {
		s.handleError(w, r, "コンテンツ生成中にエラーが発生しました", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, generateResponse(resp))
}

// handleGenerateStream streams a completion as unnamed SSE data events,
// ending with {"done": true} or {"error": ...}.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}

	llmReq := s.llmRequest(req.Message, req.Model, req.SystemInstruction, req.Config)
	err = s.llm.Stream(r.Context(), llmReq, func(chunk string) error {
		return sse.WriteData(types.StreamChunk{Content: chunk})
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "stream generation failed", "error", err)
		sse.WriteData(types.StreamChunk{Error: err.Error()}) //nolint:errcheck
		return
	}
	sse.WriteData(types.StreamChunk{Done: true}) //nolint:errcheck
}

// handleChat continues a conversation
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.llm.Chat(r.Context(), req.History(), s.llmRequest("", req.Model, req.SystemInstruction, req.Config))
	if err != nil {
		s.handleError(w, r, "チャット処理中にエラーが発生しました", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, generateResponse(resp))
}

// handleAnalyzeImage answers a prompt about a base64 image
func (s *Server) handleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	var req types.ImageAnalyzeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	img, err := req.Image()
	if err != nil {
		s.handleError(w, r, "", &ErrValidation{Field: "image_data", Message: err.Error()})
		return
	}
	if len(img.Data) > MaxUploadSize {
		s.errorResponse(w, http.StatusBadRequest, CodeBadRequest, "ファイルサイズは10MB以下にしてください")
		return
	}

	resp, err := s.llm.AnalyzeImage(r.Context(), img, s.llmRequest(req.Prompt, req.Model, "", req.Config))
	if err != nil {
		s.handleError(w, r, "画像分析中にエラーが発生しました", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, generateResponse(resp))
}

// handleUploadImage accepts a multipart "file" image of at most 10MB and
// returns it as a data URI.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, CodeBadRequest, "file is required: "+err.Error())
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		s.errorResponse(w, http.StatusBadRequest, CodeBadRequest, "画像ファイルのみアップロード可能です")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		s.jsonResponse(w, http.StatusOK, types.FileUploadResponse{
			Error: "ファイルアップロードに失敗しました: " + err.Error(),
		})
		return
	}
	if len(data) > MaxUploadSize {
		s.errorResponse(w, http.StatusBadRequest, CodeBadRequest, "ファイルサイズは10MB以下にしてください")
		return
	}

	s.jsonResponse(w, http.StatusOK, types.FileUploadResponse{
		Success:  true,
		FileURI:  "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data),
		FileSize: len(data),
		MIMEType: contentType,
	})
}
