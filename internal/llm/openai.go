package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Config OpenAI客户端配置
type Config struct {
	// APIKey 补全服务凭证
	APIKey string `json:"api_key"`

	// BaseURL 自定义端点（可选）
	BaseURL string `json:"base_url,omitempty"`

	// OrgID 组织ID（可选）
	OrgID string `json:"org_id,omitempty"`

	// RequestTimeout 默认请求超时
	RequestTimeout time.Duration `json:"request_timeout"`

	// MaxRetries SDK层的最大重试次数
	MaxRetries int `json:"max_retries"`
}

// OpenAIClient 基于官方SDK的补全服务客户端
type OpenAIClient struct {
	config Config
	client openai.Client
}

// 确保 OpenAIClient 实现 Client 接口
var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient 创建OpenAI客户端
func NewOpenAIClient(config Config) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}

	// 添加自定义端点（如果有）
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	// 添加组织ID（如果有）
	if config.OrgID != "" {
		opts = append(opts, option.WithOrganization(config.OrgID))
	}

	// 设置默认超时
	if config.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.RequestTimeout))
	}

	// 设置SDK层重试
	if config.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(config.MaxRetries))
	}

	return &OpenAIClient{
		config: config,
		client: openai.NewClient(opts...),
	}
}

// Chat 执行一次带JSON模式约束的补全调用
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	// 构建用户消息：带图片时使用多段内容
	var userMessage openai.ChatCompletionMessageParamUnion
	if req.ImageURL != "" {
		userMessage = openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(req.UserContent),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: req.ImageURL,
			}),
		})
	} else {
		userMessage = openai.UserMessage(req.UserContent)
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.Instructions),
			userMessage,
		},
	}

	// JSON模式约束的输出格式
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	// 每个请求携带自己的超时
	var callOpts []option.RequestOption
	if req.Timeout > 0 {
		callOpts = append(callOpts, option.WithRequestTimeout(req.Timeout))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params, callOpts...)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from completion service")
	}

	return &ChatResponse{
		Content:   completion.Choices[0].Message.Content,
		Model:     completion.Model,
		ID:        completion.ID,
		TokensIn:  int(completion.Usage.PromptTokens),
		TokensOut: int(completion.Usage.CompletionTokens),
	}, nil
}

// UploadFile 上传批处理输入文件
func (c *OpenAIClient) UploadFile(ctx context.Context, name string, data []byte) (string, error) {
	file, err := c.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(bytes.NewReader(data), name, "application/jsonl"),
		Purpose: openai.FilePurposeBatch,
	})
	if err != nil {
		return "", fmt.Errorf("file upload failed: %w", err)
	}
	return file.ID, nil
}

// CreateBatch 创建批处理作业
func (c *OpenAIClient) CreateBatch(ctx context.Context, inputFileID string, metadata map[string]string) (*BatchJob, error) {
	params := openai.BatchNewParams{
		CompletionWindow: openai.BatchNewParamsCompletionWindow24h,
		Endpoint:         openai.BatchNewParamsEndpointV1ChatCompletions,
		InputFileID:      inputFileID,
	}
	if len(metadata) > 0 {
		params.Metadata = openai.Metadata(metadata)
	}

	batch, err := c.client.Batches.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("batch creation failed: %w", err)
	}
	return fromOpenAIBatch(batch), nil
}

// GetBatch 查询批处理作业状态
func (c *OpenAIClient) GetBatch(ctx context.Context, batchID string) (*BatchJob, error) {
	batch, err := c.client.Batches.Get(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("batch retrieval failed: %w", err)
	}
	return fromOpenAIBatch(batch), nil
}

// DownloadFile 下载文件内容
func (c *OpenAIClient) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	res, err := c.client.Files.Content(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("file download failed: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read file content: %w", err)
	}
	return data, nil
}

// fromOpenAIBatch 转换SDK的批处理对象
func fromOpenAIBatch(b *openai.Batch) *BatchJob {
	job := &BatchJob{
		ID:           b.ID,
		Status:       mapBatchStatus(b.Status),
		OutputFileID: b.OutputFileID,
		ErrorFileID:  b.ErrorFileID,
		Metadata:     make(map[string]string, len(b.Metadata)),
	}
	for k, v := range b.Metadata {
		job.Metadata[k] = v
	}
	return job
}

// mapBatchStatus 归一化SDK状态
func mapBatchStatus(s openai.BatchStatus) BatchStatus {
	switch s {
	case openai.BatchStatusCompleted:
		return BatchStatusCompleted
	case openai.BatchStatusFailed:
		return BatchStatusFailed
	case openai.BatchStatusExpired:
		return BatchStatusExpired
	case openai.BatchStatusCancelled, openai.BatchStatusCancelling:
		return BatchStatusCancelled
	default:
		return BatchStatusInProgress
	}
}
