package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"villas-admin/internal/apiserver/apierr"
)

type ctxKey struct{}

// Handler 先按 rs 校验请求，通过后把清洗过的请求体放入 context 再调用 next
func Handler(rs RuleSet, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, apiErr := readBody(r)
		if apiErr != nil {
			apierr.Write(w, apiErr)
			return
		}

		in := &Input{Body: body, Query: map[string]any{}, Path: map[string]any{}}
		for _, f := range rs.Fields(InQuery) {
			if r.URL.Query().Has(f) {
				in.Query[f] = r.URL.Query().Get(f)
			}
		}
		for _, f := range rs.Fields(InPath) {
			in.Path[f] = r.PathValue(f)
		}

		if errs := rs.Validate(in); len(errs) > 0 {
			apierr.Write(w, apierr.ValidationFailed(errs))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, in.Body)))
	}
}

// readBody 解析 JSON 请求体，空请求体视为空对象
func readBody(r *http.Request) (map[string]any, *apierr.Error) {
	if r.Body == nil {
		return map[string]any{}, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &apierr.Error{Status: http.StatusRequestEntityTooLarge, Message: "Request entity too large"}
		}
		return nil, apierr.BadRequest("Invalid request body", err.Error())
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, apierr.BadRequest("Invalid JSON", err.Error())
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

// Body 返回校验后的请求体，未经过 Handler 时为 nil
func Body(r *http.Request) map[string]any {
	body, _ := r.Context().Value(ctxKey{}).(map[string]any)
	return body
}

// Bind 将校验后的请求体转换为结构体
func Bind(r *http.Request, dst any) error {
	body := Body(r)
	if body == nil {
		return apierr.BadRequest("Invalid request body", "")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apierr.BadRequest("Invalid request body", err.Error())
	}
	return nil
}
