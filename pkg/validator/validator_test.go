package validator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"frozen-pos/pkg/apperror"
)

type sample struct {
	Name   string           `validate:"required"`
	Owner  uuid.UUID        `validate:"uuid_required"`
	Price  decimal.Decimal  `validate:"decimal_gte0"`
	Refund *decimal.Decimal `validate:"omitempty,decimal_gte0"`
}

func TestValidateStruct(t *testing.T) {
	neg := decimal.NewFromInt(-1)
	errs := ValidateStruct(sample{Price: decimal.NewFromInt(-5), Refund: &neg})

	tags := map[string]string{}
	for _, e := range errs {
		tags[e.FailedField] = e.Tag
	}
	assert.Equal(t, "required", tags["sample.Name"])
	assert.Equal(t, "uuid_required", tags["sample.Owner"])
	assert.Equal(t, "decimal_gte0", tags["sample.Price"])
	assert.Equal(t, "decimal_gte0", tags["sample.Refund"])
}

func TestValidatePasses(t *testing.T) {
	err := Validate(sample{Name: "Nugget", Owner: uuid.New(), Price: decimal.Zero})
	assert.NoError(t, err)
}

func TestValidateReturnsValidationKind(t *testing.T) {
	err := Validate(sample{Owner: uuid.New()})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Contains(t, err.Error(), "sample.Name")
}
