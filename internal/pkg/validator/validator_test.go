package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type probe struct {
	EquipmentID int64  `form:"equipment_id" validate:"required,gt=0"`
	Email       string `json:"email" validate:"omitempty,email"`
}

func TestValidate_ReportsWireNames(t *testing.T) {
	errs := Validate(probe{Email: "nope"})

	assert.Equal(t, "required", errs["equipment_id"])
	assert.Equal(t, "email", errs["email"])
}

func TestValidate_OK(t *testing.T) {
	assert.Nil(t, Validate(probe{EquipmentID: 3}))
}
