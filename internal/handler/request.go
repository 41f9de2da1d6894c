package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/leanbff/internal/model"
)

// maxRequestBodySize はリクエストボディの読み取り上限。
const maxRequestBodySize = 1 << 20

// validate はリクエストボディ検証用のバリデーター。スレッドセーフで全リクエストで共有する。
var validate = validator.New(validator.WithRequiredStructEnabled())

// signUpRequest はPOST /auth/signupのリクエストボディ。
type signUpRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name"`
}

// signInRequest はPOST /auth/signinのリクエストボディ。
type signInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// refreshRequest はPOST /auth/refreshのリクエストボディ。
type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// updateProfileRequest はPUT /user/profileのリクエストボディ。
// どちらの項目も省略可能で、省略した項目はNULLになる。
type updateProfileRequest struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// decodeRequest はリクエストボディをdstにデコードし、validateタグで検証する。
//   - ボディが空: 空のJSONオブジェクトとして扱う
//   - JSONとして不正、または型が一致しない: "Invalid request body"
//   - 検証エラー: missingMessage
//
// いずれの失敗もKindInvalidInputのAPIErrorを返す。
func decodeRequest(r *http.Request, dst any, missingMessage string) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return model.NewInvalidInputError(model.MsgInvalidRequestBody)
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return model.NewInvalidInputError(missingMessage)
		}
		return model.NewInvalidInputError(model.MsgInvalidRequestBody)
	}
	return nil
}
