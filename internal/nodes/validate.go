package nodes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/scheduler"
)

// Ошибки валидации полей.
var (
	// ErrRequiredField — обязательное поле не заполнено.
	ErrRequiredField = errors.New("required field is missing")

	// ErrInvalidField — значение поля не соответствует его виду.
	ErrInvalidField = errors.New("invalid field value")
)

// ValidationErrors — все ошибки полей графа.
type ValidationErrors []*engine.ValidationError

// Error реализует интерфейс error.
func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Validator проверяет граф перед сохранением или запуском.
type Validator struct {
	catalog *Catalog
	eval    *engine.Evaluator
}

// NewValidator создаёт Validator. eval может быть nil — тогда выражения не разбираются.
func NewValidator(catalog *Catalog, eval *engine.Evaluator) *Validator {
	return &Validator{catalog: catalog, eval: eval}
}

// Validate проверяет структуру графа, затем поля каждого узла.
// Структурная ошибка возвращается сразу; ошибки полей собираются в ValidationErrors.
func (v *Validator) Validate(g domain.Graph) error {
	if err := engine.Validate(g, v.catalog); err != nil {
		return err
	}

	var errs ValidationErrors
	for _, n := range g.Nodes {
		errs = append(errs, v.ValidateNode(n)...)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateNode проверяет data узла по описанию типа.
func (v *Validator) ValidateNode(n domain.Node) []*engine.ValidationError {
	spec, ok := v.catalog.Get(n.Type)
	if !ok {
		return []*engine.ValidationError{engine.NewValidationError(n.ID, "type",
			fmt.Sprintf("unknown node type: %s", n.Type), engine.ErrUnknownNodeType)}
	}

	var errs []*engine.ValidationError
	for _, f := range spec.Fields {
		value, present := n.Data[f.Key]
		if !present || value == nil || value == "" {
			if f.Required {
				errs = append(errs, engine.NewValidationError(n.ID, f.Key,
					f.Key+": This field is required", ErrRequiredField))
			}
			continue
		}

		if msg := v.checkField(f, value); msg != "" {
			errs = append(errs, engine.NewValidationError(n.ID, f.Key, f.Key+": "+msg, ErrInvalidField))
		}
	}
	return errs
}

// checkField возвращает текст ошибки или пустую строку.
func (v *Validator) checkField(f Field, value any) string {
	switch f.Kind {
	case FieldNumber:
		if _, ok := toFloat(value); !ok {
			return "must be a number"
		}

	case FieldBoolean:
		if _, ok := value.(bool); !ok {
			return "must be a boolean"
		}

	case FieldURL:
		s, ok := value.(string)
		if !ok {
			return "must be a string"
		}
		u, err := url.ParseRequestURI(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return "Invalid URL format"
		}

	case FieldSelect:
		s, ok := value.(string)
		if !ok {
			return "must be a string"
		}
		for _, opt := range f.Options {
			if opt.Value == s {
				return ""
			}
		}
		return fmt.Sprintf("unsupported value %q", s)

	case FieldJSON:
		if _, err := json.Marshal(value); err != nil {
			return "Invalid JSON"
		}

	case FieldCode:
		s, ok := value.(string)
		if !ok {
			return "must be a string"
		}
		if v.eval != nil {
			if err := v.eval.Check(s); err != nil {
				return err.Error()
			}
		}

	case FieldCron:
		s, ok := value.(string)
		if !ok {
			return "must be a string"
		}
		if err := scheduler.ValidateCronExpr(s); err != nil {
			return err.Error()
		}

	default:
		if _, ok := value.(string); !ok {
			return "must be a string"
		}
	}
	return ""
}
