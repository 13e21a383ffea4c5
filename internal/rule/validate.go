package rule

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"fwagent/internal/validation"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidRule = errors.New("invalid rule")

type portSpec struct {
	Zone     string `validate:"required,zonename"`
	Port     string `validate:"required,porttoken"`
	Protocol string `validate:"required,prototoken"`
	Source   string `validate:"omitempty,sourceaddr"`
}

var (
	validatorOnce sync.Once
	validate      *validator.Validate
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("porttoken", func(fl validator.FieldLevel) bool {
			return validation.ValidatePortToken(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("prototoken", func(fl validator.FieldLevel) bool {
			return validation.ValidateProtocolToken(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("zonename", func(fl validator.FieldLevel) bool {
			return validation.IsValidZoneName(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("sourceaddr", func(fl validator.FieldLevel) bool {
			src := NormalizeSource(fl.Field().String())
			if src == AnySource {
				return true
			}
			return v.Var(src, "cidr|ip") == nil
		})
		validate = v
	})
	return validate
}

// Validate rejects a caller-supplied rule before any backend call. Compound
// port and protocol tokens are accepted.
func Validate(r Rule) error {
	if r.Kind != KindPort {
		if strings.TrimSpace(r.Value) == "" {
			return fmt.Errorf("%w: %s rule has no value", ErrInvalidRule, r.Kind)
		}
		return nil
	}
	if r.Family < FamilyIPv4 || r.Family > FamilyBoth {
		return fmt.Errorf("%w: unknown family %d", ErrInvalidRule, r.Family)
	}

	spec := portSpec{Zone: r.Zone, Port: r.Port, Protocol: r.Protocol, Source: r.Source}
	if err := getValidator().Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRule, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}
