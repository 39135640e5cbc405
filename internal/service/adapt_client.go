package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"fashion-feedback/internal/metrics"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// 连续失败达到该次数后熔断，熔断期间直接拒绝请求
const (
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
)

// AdaptationRequest POST {base}/adapt 的请求体
type AdaptationRequest struct {
	InsightID       string         `json:"insight_id"`
	ImprovementType string         `json:"improvement_type"`
	Parameters      map[string]any `json:"parameters"`
	Confidence      float64        `json:"confidence"`
}

// AdaptationClient 调用单个协作服务的 /adapt 接口
type AdaptationClient struct {
	Service string
	BaseURL string
	Client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewAdaptationClient(service, baseURL string, timeout time.Duration, log *zap.Logger) *AdaptationClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &AdaptationClient{
		Service: service,
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
	metrics.CircuitBreakerState.WithLabelValues(service).Set(0)
	c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        service,
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("adaptation circuit breaker state changed",
				zap.String("service", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return c
}

// Adapt 发送一次调整请求；非 200 视为失败。不重试
func (c *AdaptationClient) Adapt(ctx context.Context, req AdaptationRequest) error {
	if c.BaseURL == "" {
		return fmt.Errorf("%s: %w", c.Service, ErrServiceNotConfigured)
	}
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.post(ctx, req)
	})
	return err
}

func (c *AdaptationClient) post(ctx context.Context, reqBody AdaptationRequest) error {
	url := fmt.Sprintf("%s/adapt", c.BaseURL)

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		// 截取前500字符避免日志过长
		bodyStr := string(body)
		if len(bodyStr) > 500 {
			bodyStr = bodyStr[:500] + "..."
		}
		return fmt.Errorf("服务返回错误: %d, %s", resp.StatusCode, bodyStr)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
