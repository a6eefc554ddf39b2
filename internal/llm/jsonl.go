package llm

import "encoding/json"

// BatchRequestLine 批处理输入文件中的一行。
// CustomID 是关联令牌：离线作业完成后凭它找回原始文本单元。
type BatchRequestLine struct {
	CustomID string           `json:"custom_id"`
	Method   string           `json:"method"`
	URL      string           `json:"url"`
	Body     BatchRequestBody `json:"body"`
}

// BatchRequestBody 批处理请求体（chat completions 形状）
type BatchRequestBody struct {
	Model          string             `json:"model"`
	Messages       []BatchMessage     `json:"messages"`
	ResponseFormat *BatchChatResponse `json:"response_format,omitempty"`
}

// BatchMessage 请求体中的一条消息
type BatchMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BatchChatResponse JSON模式约束的输出格式声明
type BatchChatResponse struct {
	Type       string          `json:"type"`
	JSONSchema BatchJSONSchema `json:"json_schema,omitempty"`
}

// BatchJSONSchema JSON模式定义
type BatchJSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

// NewBatchRequestLine 构建一行批处理请求
func NewBatchRequestLine(customID string, req *ChatRequest) *BatchRequestLine {
	line := &BatchRequestLine{
		CustomID: customID,
		Method:   "POST",
		URL:      "/v1/chat/completions",
		Body: BatchRequestBody{
			Model: req.Model,
			Messages: []BatchMessage{
				{Role: "system", Content: req.Instructions},
				{Role: "user", Content: req.UserContent},
			},
		},
	}
	if req.Schema != nil {
		line.Body.ResponseFormat = &BatchChatResponse{
			Type: "json_schema",
			JSONSchema: BatchJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		}
	}
	return line
}

// BatchOutputLine 批处理结果文件中的一行
type BatchOutputLine struct {
	ID       string           `json:"id"`
	CustomID string           `json:"custom_id"`
	Response *BatchLineResult `json:"response"`
	Error    *BatchLineError  `json:"error"`
}

// BatchLineResult 单行的响应部分
type BatchLineResult struct {
	StatusCode int             `json:"status_code"`
	RequestID  string          `json:"request_id"`
	Body       json.RawMessage `json:"body"`
}

// BatchLineError 单行的错误部分
type BatchLineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ChatCompletionBody 结果行body中需要的字段
type ChatCompletionBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ContentOf 从结果行中取出模型输出文本
func (l *BatchOutputLine) ContentOf() (string, bool) {
	if l.Response == nil || l.Response.StatusCode != 200 {
		return "", false
	}
	var body ChatCompletionBody
	if err := json.Unmarshal(l.Response.Body, &body); err != nil || len(body.Choices) == 0 {
		return "", false
	}
	return body.Choices[0].Message.Content, true
}
