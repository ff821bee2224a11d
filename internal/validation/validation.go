// Package validation はリクエスト入力の検証を提供する。
// go-playground/validatorに独自ルール（password, phone）を登録して使う。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// PasswordMinLength はパスワードの最小文字数。
const PasswordMinLength = 8

// PasswordMaxBytes はbcryptが受け付ける最大バイト数。
const PasswordMaxBytes = 72

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// Validator はgo-playground/validatorのラッパー。ゴルーチン間で共有できる。
type Validator struct {
	v *validator.Validate
}

// New は独自ルールを登録したValidatorを生成する。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// エラーメッセージにはGoのフィールド名ではなくJSON名を使う
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// 登録は定数ルール名のみで、失敗するのはプログラムの誤りに限られる
	if err := v.RegisterValidation("password", validatePassword); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("phone", validatePhone); err != nil {
		panic(err)
	}

	return &Validator{v: v}
}

// Struct はタグに従って構造体を検証する。
// 失敗時は最初の違反を人が読める形で説明するエラーを返す。
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return errors.New(describe(verrs[0]))
	}
	return err
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "password":
		return fmt.Sprintf("%s must be %d-%d bytes and contain a lowercase letter, an uppercase letter, a digit and a special character",
			field, PasswordMinLength, PasswordMaxBytes)
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func validatePassword(fl validator.FieldLevel) bool {
	return IsStrongPassword(fl.Field().String())
}

func validatePhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

// IsStrongPassword はパスワードが強度要件を満たすか判定する。
// 8文字以上72バイト以下で、小文字・大文字・数字・記号をそれぞれ1文字以上含むこと。
func IsStrongPassword(p string) bool {
	if len([]rune(p)) < PasswordMinLength || len(p) > PasswordMaxBytes {
		return false
	}

	var lower, upper, digit, special bool
	for _, r := range p {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return lower && upper && digit && special
}
