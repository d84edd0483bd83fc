package types

import (
	"encoding/base64"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/property-analyzer/internal/llm"
)

// MaxMessageLength bounds prompt and chat message size in characters.
const MaxMessageLength = 32000

// DefaultImagePrompt is used when an image request carries no prompt.
const DefaultImagePrompt = "この画像について説明してください"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterStructValidation(chatRequestValidation, ChatRequest{})
	})
	return validate
}

// GenerateRequest asks for a single completion.
type GenerateRequest struct {
	Message           string                `json:"message" validate:"required,min=1,max=32000"`
	Model             string                `json:"model,omitempty"`
	Config            *llm.GenerationConfig `json:"config,omitempty"`
	SystemInstruction string                `json:"system_instruction,omitempty"`
}

// ChatMessage is one turn of a chat request. "assistant" is accepted as an
// alias for the model role.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant model"`
	Content string `json:"content" validate:"required,min=1,max=32000"`
}

// ChatRequest continues a conversation; the last message must be from the user.
type ChatRequest struct {
	Messages          []ChatMessage         `json:"messages" validate:"required,min=1,dive"`
	Model             string                `json:"model,omitempty"`
	Config            *llm.GenerationConfig `json:"config,omitempty"`
	SystemInstruction string                `json:"system_instruction,omitempty"`
}

// ImageAnalyzeRequest asks a question about a base64 encoded image.
type ImageAnalyzeRequest struct {
	ImageData string                `json:"image_data" validate:"required,base64"`
	Prompt    string                `json:"prompt,omitempty" validate:"max=1000"`
	MIMEType  string                `json:"mime_type,omitempty" validate:"omitempty,oneof=image/jpeg image/png image/gif image/webp"`
	Model     string                `json:"model,omitempty"`
	Config    *llm.GenerationConfig `json:"config,omitempty"`
}

// CompressRequest compresses pasted listing text without analysis.
type CompressRequest struct {
	Text   string `json:"text" validate:"required,min=1"`
	Budget int    `json:"budget,omitempty" validate:"omitempty,min=1"`
}

// Validate validates the GenerateRequest using the validator.
func (r *GenerateRequest) Validate() error {
	r.Message = strings.TrimSpace(r.Message)
	return validatorInstance().Struct(r)
}

// Validate validates the ChatRequest using the validator.
func (r *ChatRequest) Validate() error {
	for i := range r.Messages {
		r.Messages[i].Content = strings.TrimSpace(r.Messages[i].Content)
	}
	return validatorInstance().Struct(r)
}

// Validate validates the ImageAnalyzeRequest and fills defaults.
func (r *ImageAnalyzeRequest) Validate() error {
	if r.Prompt == "" {
		r.Prompt = DefaultImagePrompt
	}
	if r.MIMEType == "" {
		r.MIMEType = "image/jpeg"
	}
	return validatorInstance().Struct(r)
}

// Validate validates the CompressRequest using the validator.
func (r *CompressRequest) Validate() error {
	return validatorInstance().Struct(r)
}

// ValidateStruct validates any struct carrying validate tags.
func ValidateStruct(v any) error {
	return validatorInstance().Struct(v)
}

func chatRequestValidation(sl validator.StructLevel) {
	req := sl.Current().Interface().(ChatRequest)
	if len(req.Messages) == 0 {
		return
	}
	if req.Messages[len(req.Messages)-1].Role != string(llm.RoleUser) {
		sl.ReportError(req.Messages, "Messages", "messages", "last_from_user", "")
	}
}

// History converts the request messages into LLM chat turns.
func (r *ChatRequest) History() []llm.Message {
	history := make([]llm.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		role := llm.RoleUser
		if m.Role != string(llm.RoleUser) {
			role = llm.RoleModel
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}
	return history
}

// Image decodes the request image.
func (r *ImageAnalyzeRequest) Image() (llm.Image, error) {
	data, err := base64.StdEncoding.DecodeString(r.ImageData)
	if err != nil {
		return llm.Image{}, errors.New("image_data is not valid base64")
	}
	return llm.Image{Data: data, MIMEType: r.MIMEType}, nil
}

// GenerateResponse is returned by the generate, chat and image endpoints.
type GenerateResponse struct {
	Success      bool       `json:"success"`
	Content      string     `json:"content,omitempty"`
	Model        string     `json:"model,omitempty"`
	Error        string     `json:"error,omitempty"`
	Usage        *llm.Usage `json:"usage,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// StreamChunk is one server-sent event of a streamed generation.
type StreamChunk struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse reports service status.
type HealthResponse struct {
	Status             string `json:"status"`
	Version            string `json:"version"`
	Timestamp          string `json:"timestamp"`
	GoogleCloudProject string `json:"google_cloud_project"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
	Timestamp string `json:"timestamp"`
}

// FileUploadResponse carries an uploaded image as a data URI.
type FileUploadResponse struct {
	Success  bool   `json:"success"`
	FileURI  string `json:"file_uri,omitempty"`
	FileSize int    `json:"file_size,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Error    string `json:"error,omitempty"`
}
