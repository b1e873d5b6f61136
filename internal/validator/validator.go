// Package validator provides the custom validation rules shared by node
// payload validation and Gin's binding engine.
package validator

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	engine     *validator.Validate
	engineOnce sync.Once
)

// assetClasses contains the asset classes a source asset may declare.
var assetClasses = map[string]bool{
	"stock": true, "etf": true, "bond": true, "crypto": true, "reit": true,
	"cash": true, "real_estate": true, "commodity": true, "private_equity": true, "other": true,
}

// Engine returns the shared validator used for composition payloads.
func Engine() *validator.Validate {
	engineOnce.Do(func() {
		engine = validator.New(validator.WithRequiredStructEnabled())
		registerRules(engine)
	})
	return engine
}

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerRules(v)
	}
}

func registerRules(v *validator.Validate) {
	_ = v.RegisterValidation("asset_class", validateAssetClass)
	_ = v.RegisterValidation("severity", validateSeverity)
	_ = v.RegisterValidation("node_type", validateNodeType)
}

// IsAssetClass reports whether class is an accepted asset class.
func IsAssetClass(class string) bool {
	return assetClasses[class]
}

func validateAssetClass(fl validator.FieldLevel) bool {
	return IsAssetClass(fl.Field().String())
}

func validateSeverity(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "low", "medium", "high":
		return true
	}
	return false
}

func validateNodeType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "sourceAsset", "cashflowSet", "formulaSet", "riskProfile":
		return true
	}
	return false
}
