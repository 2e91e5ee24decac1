package transcript

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

// Fetcher 按来源引用尽力获取文字稿
// 获取失败不会中断生成流程，调用方记录日志后按无文字稿路径继续
type Fetcher interface {
	Fetch(ctx context.Context, sourceReference string) (string, error)
}

// HTTPFetcher 通过 HTTP GET 拉取文字稿
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher 创建文字稿抓取器
// maxBytes 限制读取上限，防止超长文本撑爆提示词
func NewHTTPFetcher(maxBytes int64) *HTTPFetcher {
	if maxBytes <= 0 {
		maxBytes = 256 * 1024
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxBytes: maxBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, sourceReference string) (string, error) {
	sourceReference = strings.TrimSpace(sourceReference)
	if sourceReference == "" {
		return "", nil
	}

	klog.V(6).Infof("[Fetch] 开始抓取文字稿: ref=%s", sourceReference)

	req, err := http.NewRequestWithContext(ctx, "GET", sourceReference, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	text := strings.TrimSpace(string(body))
	klog.V(6).Infof("[Fetch] 文字稿抓取完成: ref=%s, length=%d", sourceReference, len(text))
	return text, nil
}
