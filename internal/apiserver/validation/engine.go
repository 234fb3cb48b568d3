// Package validation 声明式请求校验
//
// 每个接口对应一个 RuleSet（有序规则表），规则 = 字段 + 清洗 + 判定 + 提示。
// 校验一次性跑完全部规则，返回所有失败字段，不在第一处错误处中断。
//
// 字段路径支持嵌套与通配：
//
//	"villas.*.id"       → villas[0].id, villas[1].id, ...
//	"updateData.status" → updateData.status
package validation

import (
	"strconv"
	"strings"

	"villas-admin/internal/apiserver/apierr"
)

// Location 字段来源
type Location int

const (
	InBody Location = iota
	InQuery
	InPath
)

// Check 判定函数，v 为清洗后的值（字段缺失时为 nil）
type Check func(v any) bool

// Sanitizer 清洗函数，结果写回请求数据
type Sanitizer func(v any) any

// Rule 单条校验规则
type Rule struct {
	Field    string
	In       Location
	Optional bool // 字段缺失（或 query 中为空串）时跳过
	Sanitize Sanitizer
	Check    Check
	Message  string
}

// RuleSet 一个接口的全部规则，按顺序执行
type RuleSet []Rule

// Input 待校验的请求数据
type Input struct {
	Body  map[string]any
	Query map[string]any
	Path  map[string]any
}

// Validate 执行全部规则，返回所有失败项；清洗结果直接写回 in
func (rs RuleSet) Validate(in *Input) []apierr.FieldError {
	var errs []apierr.FieldError
	for _, rule := range rs {
		root := in.source(rule.In)
		for _, t := range resolve(root, rule.Field) {
			if rule.Optional && isAbsent(t.value, t.present) {
				continue
			}
			v := t.value
			if rule.Sanitize != nil && t.present {
				v = rule.Sanitize(v)
				t.set(v)
			}
			if rule.Check != nil && !rule.Check(v) {
				errs = append(errs, apierr.FieldError{Field: t.path, Message: rule.Message, Value: v})
			}
		}
	}
	return errs
}

// Fields 规则涉及的某一来源的顶层字段名
func (rs RuleSet) Fields(loc Location) []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range rs {
		if r.In != loc {
			continue
		}
		top, _, _ := strings.Cut(r.Field, ".")
		if !seen[top] {
			seen[top] = true
			out = append(out, top)
		}
	}
	return out
}

func (in *Input) source(loc Location) map[string]any {
	var m *map[string]any
	switch loc {
	case InQuery:
		m = &in.Query
	case InPath:
		m = &in.Path
	default:
		m = &in.Body
	}
	if *m == nil {
		*m = map[string]any{}
	}
	return *m
}

func isAbsent(v any, present bool) bool {
	if !present || v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// ============================================================================
// 路径解析
// ============================================================================

// target 一个具体字段位置
type target struct {
	path    string
	value   any
	present bool
	set     func(any)
}

// resolve 将带通配符的字段路径展开为具体位置
func resolve(root map[string]any, field string) []target {
	return walk(root, strings.Split(field, "."), "")
}

func walk(node map[string]any, parts []string, prefix string) []target {
	key := parts[0]
	path := key
	if prefix != "" {
		path = prefix + "." + key
	}
	v, ok := node[key]
	if len(parts) == 1 {
		return []target{{path: path, value: v, present: ok, set: func(nv any) { node[key] = nv }}}
	}

	if parts[1] == "*" {
		arr, isArr := v.([]any)
		if !isArr {
			return nil
		}
		var out []target
		for i := range arr {
			elemPath := path + "[" + strconv.Itoa(i) + "]"
			if len(parts) == 2 {
				idx := i
				out = append(out, target{path: elemPath, value: arr[i], present: true, set: func(nv any) { arr[idx] = nv }})
				continue
			}
			if child, isMap := arr[i].(map[string]any); isMap {
				out = append(out, walk(child, parts[2:], elemPath)...)
			} else {
				out = append(out, target{path: elemPath + "." + strings.Join(parts[2:], ".")})
			}
		}
		return out
	}

	child, isMap := v.(map[string]any)
	if !isMap {
		// 父节点缺失：子字段按缺失处理
		return []target{{path: path + "." + strings.Join(parts[1:], "."), set: func(any) {}}}
	}
	return walk(child, parts[1:], path)
}
