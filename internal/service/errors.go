package service

import "errors"

var (
	// ErrInvalidFeedback 反馈提交缺字段或枚举值不认识
	ErrInvalidFeedback = errors.New("invalid feedback")

	// ErrProcessorClosed 已关闭的管线不再接收反馈
	ErrProcessorClosed = errors.New("feedback processor is closed")

	ErrInsightNotFound = errors.New("insight not found")

	// ErrServiceNotConfigured 下游服务地址为空
	ErrServiceNotConfigured = errors.New("adaptation target not configured")
)

// ErrNoAdaptationTarget 该学习目标没有对应的下游服务
var ErrNoAdaptationTarget = errors.New("no adaptation target for objective")
