package employee

import "errors"

var (
	// ErrValidation は検証ルール違反をまとめるセンチネルです。
	ErrValidation = errors.New("employee: validation failed")
	// ErrEmployeeNotFound は対象の社員が存在しない場合に返却されます。
	ErrEmployeeNotFound = errors.New("Employee not found")
	// ErrManagerNotFound は指定された上長が存在しない場合に返却されます。
	ErrManagerNotFound = errors.New("Boss not found")
	// ErrNoEmployees は集計対象の社員が一人もいない場合に返却されます。
	ErrNoEmployees = errors.New("No employees found")
	// ErrInvalidID は ID が不正な場合に返却されます。
	ErrInvalidID = errors.New("employee: invalid id")
)

// ValidationError は最初に違反した検証ルールを表します。
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is は errors.Is(err, ErrValidation) を満たすためのものです。
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError はルール名とメッセージから ValidationError を生成します。
func NewValidationError(rule, message string) *ValidationError {
	return &ValidationError{Rule: rule, Message: message}
}
