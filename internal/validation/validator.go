// Package validation provides precondition validation for matrix operations.
// Dimension compatibility is checked here, before any work is dispatched, so
// the scheduler itself can assume conformant operands.
package validation

import (
	"fmt"

	"github.com/paveg/parmat/internal/errors"
)

// Validator interface for input validation
type Validator interface {
	Validate() error
}

// Shaped is anything that reports a row and column count.
type Shaped interface {
	Rows() int
	Cols() int
}

// ShapeValidator validates requested dimensions
type ShapeValidator struct {
	rows int
	cols int
	op   string
}

// NewShapeValidator creates a validator for matrix construction
func NewShapeValidator(rows, cols int, op string) *ShapeValidator {
	return &ShapeValidator{rows: rows, cols: cols, op: op}
}

// Validate checks that both dimensions are positive
func (v *ShapeValidator) Validate() error {
	if v.rows <= 0 || v.cols <= 0 {
		return errors.NewInvalidShapeError(v.op,
			fmt.Sprintf("dimensions must be > 0, got %dx%d", v.rows, v.cols))
	}
	return nil
}

// ProductValidator validates operands of a matrix product
type ProductValidator struct {
	a, b Shaped
	op   string
}

// NewProductValidator creates a validator for a·b
func NewProductValidator(a, b Shaped, op string) *ProductValidator {
	return &ProductValidator{a: a, b: b, op: op}
}

// Validate checks that a's column count equals b's row count
func (v *ProductValidator) Validate() error {
	if v.a.Cols() != v.b.Rows() {
		return errors.NewDimensionMismatchError(v.op,
			fmt.Sprintf("cannot multiply %dx%d by %dx%d", v.a.Rows(), v.a.Cols(), v.b.Rows(), v.b.Cols()))
	}
	return nil
}

// SameShapeValidator validates operands of an element-wise operation
type SameShapeValidator struct {
	a, b Shaped
	op   string
}

// NewSameShapeValidator creates a validator for element-wise operations
func NewSameShapeValidator(a, b Shaped, op string) *SameShapeValidator {
	return &SameShapeValidator{a: a, b: b, op: op}
}

// Validate checks that both operands have identical shape
func (v *SameShapeValidator) Validate() error {
	if v.a.Rows() != v.b.Rows() || v.a.Cols() != v.b.Cols() {
		return errors.NewDimensionMismatchError(v.op,
			fmt.Sprintf("shapes %dx%d and %dx%d differ", v.a.Rows(), v.a.Cols(), v.b.Rows(), v.b.Cols()))
	}
	return nil
}

// SquareValidator validates that a matrix is square
type SquareValidator struct {
	m  Shaped
	op string
}

// NewSquareValidator creates a validator for square-only operations
func NewSquareValidator(m Shaped, op string) *SquareValidator {
	return &SquareValidator{m: m, op: op}
}

// Validate checks rows == cols
func (v *SquareValidator) Validate() error {
	if v.m.Rows() != v.m.Cols() {
		return &errors.MatrixError{
			Op:      v.op,
			Row:     errors.NoRow,
			Message: fmt.Sprintf("square matrix required, got %dx%d", v.m.Rows(), v.m.Cols()),
			Cause:   errors.ErrNonSquare,
		}
	}
	return nil
}

// LengthValidator validates slice length consistency
type LengthValidator struct {
	expected int
	actual   int
	op       string
	context  string
}

// NewLengthValidator creates a validator for length consistency
func NewLengthValidator(expected, actual int, op, context string) *LengthValidator {
	return &LengthValidator{
		expected: expected,
		actual:   actual,
		op:       op,
		context:  context,
	}
}

// Validate checks if lengths match
func (v *LengthValidator) Validate() error {
	if v.expected != v.actual {
		message := fmt.Sprintf("%s: expected length %d, got %d", v.context, v.expected, v.actual)
		return errors.NewDimensionMismatchError(v.op, message)
	}
	return nil
}

// IndexValidator validates index bounds
type IndexValidator struct {
	index int
	max   int
	op    string
}

// NewIndexValidator creates a validator for index operations
func NewIndexValidator(index, maxIndex int, op string) *IndexValidator {
	return &IndexValidator{
		index: index,
		max:   maxIndex,
		op:    op,
	}
}

// Validate checks if index is within bounds
func (v *IndexValidator) Validate() error {
	if v.index < 0 || v.index >= v.max {
		return &errors.MatrixError{
			Op:      v.op,
			Row:     errors.NoRow,
			Message: fmt.Sprintf("index %d out of bounds [0, %d)", v.index, v.max),
			Cause:   errors.ErrIndexOutOfRange,
		}
	}
	return nil
}

// CompoundValidator combines multiple validators
type CompoundValidator struct {
	validators []Validator
}

// NewCompoundValidator creates a validator that checks multiple conditions
func NewCompoundValidator(validators ...Validator) *CompoundValidator {
	return &CompoundValidator{
		validators: validators,
	}
}

// Validate runs all validators and returns the first error encountered
func (v *CompoundValidator) Validate() error {
	for _, validator := range v.validators {
		if err := validator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Convenience validation functions

// ValidateShape is a convenience function for shape validation
func ValidateShape(rows, cols int, op string) error {
	return NewShapeValidator(rows, cols, op).Validate()
}

// ValidateProduct is a convenience function for product compatibility
func ValidateProduct(a, b Shaped, op string) error {
	return NewProductValidator(a, b, op).Validate()
}

// ValidateSameShape is a convenience function for element-wise compatibility
func ValidateSameShape(a, b Shaped, op string) error {
	return NewSameShapeValidator(a, b, op).Validate()
}

// ValidateSquare is a convenience function for square checks
func ValidateSquare(m Shaped, op string) error {
	return NewSquareValidator(m, op).Validate()
}

// ValidateLength is a convenience function for length validation
func ValidateLength(expected, actual int, op, context string) error {
	return NewLengthValidator(expected, actual, op, context).Validate()
}

// ValidateIndex is a convenience function for index validation
func ValidateIndex(index, maxIndex int, op string) error {
	return NewIndexValidator(index, maxIndex, op).Validate()
}
