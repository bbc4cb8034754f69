package nodes

import (
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
)

// Значения по умолчанию, которые применяет DecodeConfig.
const (
	DefaultTriggerInterval = 1000
	DefaultAPIMethod       = "GET"
	DefaultOutputFormat    = "json"
	DefaultDelay           = time.Second
	DefaultMaxIterations   = 10
	DefaultMergeType       = "union"
	DefaultRetryCount      = 3
)

// Config — типизированные настройки узла.
//
// Каждый тип узла имеет свой вариант; NodeType указывает, какой именно.
// Конвертацию из data выполняет DecodeConfig.
type Config interface {
	NodeType() domain.NodeType
}

// TriggerConfig — настройки trigger.
type TriggerConfig struct {
	Interval int
	Payload  any
	Schedule string // cron-выражение, пусто если не задано
	Timezone string
}

// APIConfig — настройки api.
type APIConfig struct {
	URL     string
	Method  string
	Headers map[string]string
}

// TransformConfig — настройки transform.
type TransformConfig struct {
	Script string
}

// DecisionConfig — настройки decision.
type DecisionConfig struct {
	Condition string
}

// OutputConfig — настройки output.
type OutputConfig struct {
	Target string
	Format string
}

// DelayConfig — настройки delay.
type DelayConfig struct {
	Duration time.Duration
}

// LoopConfig — настройки loop.
type LoopConfig struct {
	MaxIterations int
	Condition     string
}

// MergeConfig — настройки merge.
type MergeConfig struct {
	MergeType string
}

// ErrorHandlerConfig — настройки errorHandler.
type ErrorHandlerConfig struct {
	RetryCount   int
	Notification string
}

// CustomConfig — настройки custom и неизвестных типов.
type CustomConfig struct {
	Type   domain.NodeType
	Fields map[string]any
}

func (TriggerConfig) NodeType() domain.NodeType      { return domain.NodeTypeTrigger }
func (APIConfig) NodeType() domain.NodeType          { return domain.NodeTypeAPI }
func (TransformConfig) NodeType() domain.NodeType    { return domain.NodeTypeTransform }
func (DecisionConfig) NodeType() domain.NodeType     { return domain.NodeTypeDecision }
func (OutputConfig) NodeType() domain.NodeType       { return domain.NodeTypeOutput }
func (DelayConfig) NodeType() domain.NodeType        { return domain.NodeTypeDelay }
func (LoopConfig) NodeType() domain.NodeType         { return domain.NodeTypeLoop }
func (MergeConfig) NodeType() domain.NodeType        { return domain.NodeTypeMerge }
func (ErrorHandlerConfig) NodeType() domain.NodeType { return domain.NodeTypeErrorHandler }
func (c CustomConfig) NodeType() domain.NodeType     { return c.Type }

// DecodeConfig переводит data узла в типизированный вариант.
//
// Декодирование мягкое: поля неверного типа заменяются значениями по умолчанию.
// Строгую проверку делает Catalog.ValidateNode.
func DecodeConfig(n domain.Node) Config {
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}

	switch n.Type {
	case domain.NodeTypeTrigger:
		payload, ok := data["payload"]
		if !ok || payload == nil {
			payload = map[string]any{}
		}
		return TriggerConfig{
			Interval: GetConfigIntDefault(data, "interval", DefaultTriggerInterval),
			Payload:  payload,
			Schedule: GetConfigString(data, "schedule"),
			Timezone: GetConfigString(data, "timezone"),
		}

	case domain.NodeTypeAPI:
		return APIConfig{
			URL:     GetConfigString(data, "url"),
			Method:  GetConfigStringDefault(data, "method", DefaultAPIMethod),
			Headers: GetConfigMapString(data, "headers"),
		}

	case domain.NodeTypeTransform:
		return TransformConfig{Script: GetConfigString(data, "script")}

	case domain.NodeTypeDecision:
		return DecisionConfig{Condition: GetConfigString(data, "condition")}

	case domain.NodeTypeOutput:
		return OutputConfig{
			Target: GetConfigString(data, "target"),
			Format: GetConfigStringDefault(data, "format", DefaultOutputFormat),
		}

	case domain.NodeTypeDelay:
		return DelayConfig{Duration: decodeDelay(data)}

	case domain.NodeTypeLoop:
		return LoopConfig{
			MaxIterations: GetConfigIntDefault(data, "maxIterations", DefaultMaxIterations),
			Condition:     GetConfigString(data, "condition"),
		}

	case domain.NodeTypeMerge:
		return MergeConfig{MergeType: GetConfigStringDefault(data, "mergeType", DefaultMergeType)}

	case domain.NodeTypeErrorHandler:
		return ErrorHandlerConfig{
			RetryCount:   GetConfigIntDefault(data, "retryCount", DefaultRetryCount),
			Notification: GetConfigString(data, "notification"),
		}

	default:
		fields := GetConfigMap(data, "customFields")
		if fields == nil {
			fields = map[string]any{}
		}
		return CustomConfig{Type: n.Type, Fields: fields}
	}
}

// decodeDelay читает длительность в секундах из duration_seconds или duration.
// Ноль и отсутствие значения дают DefaultDelay, отрицательное — ноль.
func decodeDelay(data map[string]any) time.Duration {
	sec, ok := GetConfigFloat(data, "duration_seconds")
	if !ok {
		sec, ok = GetConfigFloat(data, "duration")
	}
	switch {
	case !ok || sec == 0:
		return DefaultDelay
	case sec < 0:
		return 0
	default:
		return time.Duration(sec * float64(time.Second))
	}
}

// GetConfigString извлекает строковое значение из конфига.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigStringDefault извлекает непустую строку или возвращает defaultVal.
func GetConfigStringDefault(config map[string]any, key, defaultVal string) string {
	if s := GetConfigString(config, key); s != "" {
		return s
	}
	return defaultVal
}

// GetConfigFloat извлекает число из конфига. ok=false, если ключа нет или значение не число.
func GetConfigFloat(config map[string]any, key string) (float64, bool) {
	v, ok := config[key]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// GetConfigIntDefault извлекает целое число или возвращает defaultVal, если значения нет.
// Явный ноль сохраняется.
func GetConfigIntDefault(config map[string]any, key string, defaultVal int) int {
	if f, ok := GetConfigFloat(config, key); ok {
		return int(f)
	}
	return defaultVal
}

// GetConfigMap извлекает map из конфига.
func GetConfigMap(config map[string]any, key string) map[string]any {
	if v, ok := config[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// GetConfigMapString извлекает map[string]string из конфига.
func GetConfigMapString(config map[string]any, key string) map[string]string {
	if v, ok := config[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
