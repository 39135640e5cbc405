package service

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"

	"fashion-feedback/internal/model"

	"gorm.io/datatypes"
)

// FeatureVectorSize 特征向量定长，不足补 0，超出截断
const FeatureVectorSize = 20

// FeatureNames 特征下标到名字的映射，用于特征重要性洞察
var FeatureNames = [...]string{
	"confidence",
	"feedback_type",
	"service_source",
	"feedback_data_size",
	"context_size",
	"session_duration",
	"items_viewed",
	"previous_interactions",
	"returning_user",
	"time_of_day",
	"rating_signal",
	"service_signal_1",
	"service_signal_2",
	"service_signal_3",
}

func featureName(i int) string {
	if i >= 0 && i < len(FeatureNames) {
		return FeatureNames[i]
	}
	return fmt.Sprintf("feature_%d", i)
}

// 行为信号里算作正向的动作
var positiveActions = map[string]bool{
	"like":     true,
	"save":     true,
	"share":    true,
	"purchase": true,
}

// 服务特有的三个质量字段，其它来源填 0.5
var serviceSignalKeys = map[string][3]string{
	"recommendation_engine": {"recommendation_relevance", "diversity_score", "novelty_score"},
	"combination_engine":    {"style_coherence", "color_harmony", "context_appropriateness"},
}

// CategoricalEncoder 把类别值编码成 [0,1) 内的数
type CategoricalEncoder func(value string) float64

// HashEncode FNV-1a 取模编码。有碰撞，没有语义顺序，只保证同值同码
func HashEncode(value string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	return float64(h.Sum32()%1000) / 1000
}

// TrainingSample 一条反馈抽出来的 (特征, 目标)
type TrainingSample struct {
	FeedbackID string
	Features   []float64
	Target     float64
}

type FeatureExtractor struct {
	encode CategoricalEncoder
}

func NewFeatureExtractor(encode CategoricalEncoder) *FeatureExtractor {
	if encode == nil {
		encode = HashEncode
	}
	return &FeatureExtractor{encode: encode}
}

// Extract 构造特征与目标；任何字段类型不对都返回错误，由调用方丢弃这条
func (e *FeatureExtractor) Extract(entry *model.FeedbackEntry) (TrainingSample, error) {
	features, err := e.FeatureVector(entry)
	if err != nil {
		return TrainingSample{}, err
	}
	target, err := ExtractTarget(entry)
	if err != nil {
		return TrainingSample{}, err
	}
	return TrainingSample{FeedbackID: entry.FeedbackID, Features: features, Target: target}, nil
}

// ExtractTarget 按反馈类型把反馈映射成 [0,1] 的学习目标
func ExtractTarget(entry *model.FeedbackEntry) (float64, error) {
	data := entry.FeedbackData
	switch entry.FeedbackType {
	case model.FeedbackExplicitRating:
		rating, ok, err := numberField(data, "rating")
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("explicit_rating 缺少 rating")
		}
		return (rating - 1) / 4, nil
	case model.FeedbackAcceptance:
		if truthy(data["accepted"]) {
			return 1, nil
		}
		return 0, nil
	case model.FeedbackRejection:
		rejected, present := data["rejected"]
		if !present || truthy(rejected) {
			return 0, nil
		}
		return 1, nil
	case model.FeedbackImplicitEngagement:
		return numberOr(data, "engagement_score", 0.5)
	case model.FeedbackBehavioralSignals:
		return positiveActionRatio(data)
	default:
		return 0.5, nil
	}
}

// FeatureVector 构造定长特征向量，顺序固定（见 FeatureNames）
func (e *FeatureExtractor) FeatureVector(entry *model.FeedbackEntry) ([]float64, error) {
	session := entry.Context
	features := make([]float64, 0, FeatureVectorSize)
	features = append(features,
		entry.Confidence,
		e.encode(string(entry.FeedbackType)),
		e.encode(entry.ServiceSource),
		float64(len(entry.FeedbackData)),
		float64(len(session)),
	)

	for _, f := range []struct {
		key   string
		scale float64
	}{
		{"session_duration", 3600},
		{"items_viewed", 100},
		{"previous_interactions", 50},
	} {
		v, err := numberOr(session, f.key, 0)
		if err != nil {
			return nil, err
		}
		features = append(features, v/f.scale)
	}

	if truthy(session["returning_user"]) {
		features = append(features, 1)
	} else {
		features = append(features, 0)
	}

	tod, err := numberOr(session, "time_of_day", 0)
	if err != nil {
		return nil, err
	}
	features = append(features, tod/24)

	// 显式评分本身就是目标值，不能再当特征，固定填中性值
	ratingSignal := 0.5
	if entry.FeedbackType != model.FeedbackExplicitRating {
		rating, ok, err := numberField(entry.FeedbackData, "rating")
		if err != nil {
			return nil, err
		}
		if ok {
			ratingSignal = rating / 5
		}
	}
	features = append(features, ratingSignal)

	if keys, ok := serviceSignalKeys[entry.ServiceSource]; ok {
		for _, k := range keys {
			v, err := numberOr(entry.FeedbackData, k, 0.5)
			if err != nil {
				return nil, err
			}
			features = append(features, v)
		}
	} else {
		features = append(features, 0.5, 0.5, 0.5)
	}

	if len(features) > FeatureVectorSize {
		features = features[:FeatureVectorSize]
	}
	for len(features) < FeatureVectorSize {
		features = append(features, 0)
	}
	return features, nil
}

// RatingOf 取显式评分，非 explicit_rating 或评分缺失/非法时 ok=false
func RatingOf(entry *model.FeedbackEntry) (float64, bool) {
	if entry.FeedbackType != model.FeedbackExplicitRating {
		return 0, false
	}
	rating, ok, err := numberField(entry.FeedbackData, "rating")
	if err != nil || !ok {
		return 0, false
	}
	return rating, true
}

func positiveActionRatio(data datatypes.JSONMap) (float64, error) {
	raw, present := data["actions"]
	if !present || raw == nil {
		return 0.5, nil
	}
	var actions []any
	switch v := raw.(type) {
	case []any:
		actions = v
	case []string:
		for _, a := range v {
			actions = append(actions, a)
		}
	default:
		return 0, fmt.Errorf("actions 类型错误: %T", raw)
	}
	if len(actions) == 0 {
		return 0.5, nil
	}
	var positive int
	for _, a := range actions {
		if s, ok := a.(string); ok && positiveActions[s] {
			positive++
		}
	}
	return float64(positive) / float64(len(actions)), nil
}

// numberField 读数值字段；缺失或 null 时 ok=false。未知字段一律忽略
func numberField(m datatypes.JSONMap, key string) (float64, bool, error) {
	raw, present := m[key]
	if !present || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case float32:
		return float64(v), true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case int32:
		return float64(v), true, nil
	case bool:
		if v {
			return 1, true, nil
		}
		return 0, true, nil
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return 0, false, fmt.Errorf("%s 不是数值: %w", key, err)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("%s 类型错误: %T", key, raw)
	}
}

func numberOr(m datatypes.JSONMap, key string, def float64) (float64, error) {
	v, ok, err := numberField(m, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
