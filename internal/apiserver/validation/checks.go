package validation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ============================================================================
// 判定
// ============================================================================

// toString 以字符串形式读取值，数字按最短十进制表示
func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// toNumber 数字或数字字符串
func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Length 字符数在 [min, max] 之间，max<=0 表示不限
func Length(min, max int) Check {
	return func(v any) bool {
		if _, ok := v.(string); !ok && v != nil {
			if _, num := v.(float64); !num {
				return false
			}
		}
		n := utf8.RuneCountInString(toString(v))
		return n >= min && (max <= 0 || n <= max)
	}
}

// Matches 正则匹配
func Matches(re *regexp.Regexp) Check {
	return func(v any) bool {
		s, ok := v.(string)
		return ok && re.MatchString(s)
	}
}

// NotEmpty 非空字符串
func NotEmpty() Check {
	return func(v any) bool {
		return toString(v) != ""
	}
}

// IsNumeric 数字或数字字符串
func IsNumeric() Check {
	return func(v any) bool {
		_, ok := toNumber(v)
		return ok
	}
}

// NumberAtLeast 数值 >= min
func NumberAtLeast(min float64) Check {
	return func(v any) bool {
		f, ok := toNumber(v)
		return ok && f >= min
	}
}

// Positive 数值 > 0
func Positive() Check {
	return func(v any) bool {
		f, ok := toNumber(v)
		return ok && f > 0
	}
}

// IsInt 整数且在 [min, max] 之间，max<=0 表示不限
func IsInt(min, max int) Check {
	return func(v any) bool {
		f, ok := toNumber(v)
		if !ok || f != math.Trunc(f) {
			return false
		}
		return f >= float64(min) && (max <= 0 || f <= float64(max))
	}
}

// IsIn 枚举成员
func IsIn[T ~string](values []T) Check {
	return func(v any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		for _, allowed := range values {
			if string(allowed) == s {
				return true
			}
		}
		return false
	}
}

// IsArray 数组且元素数 >= min
func IsArray(min int) Check {
	return func(v any) bool {
		arr, ok := v.([]any)
		return ok && len(arr) >= min
	}
}

// IsStringArray 字符串数组
func IsStringArray() Check {
	return func(v any) bool {
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		for _, e := range arr {
			if _, isStr := e.(string); !isStr {
				return false
			}
		}
		return true
	}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsEmail 邮箱格式
func IsEmail() Check {
	return Matches(emailRegex)
}

var hexIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// IsDocumentID 24 位十六进制文档 ID
func IsDocumentID() Check {
	return Matches(hexIDRegex)
}

// IsDate RFC3339 或 YYYY-MM-DD，月、日必须真实存在
func IsDate() Check {
	return func(v any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		for _, layout := range []string{time.RFC3339, time.DateOnly} {
			if _, err := time.Parse(layout, s); err == nil {
				return true
			}
		}
		return false
	}
}

// All 全部判定通过
func All(checks ...Check) Check {
	return func(v any) bool {
		for _, c := range checks {
			if !c(v) {
				return false
			}
		}
		return true
	}
}

// ============================================================================
// 清洗
// ============================================================================

// Trim 去除字符串首尾空白
func Trim(v any) any {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}

// NormalizeEmail 去空白并转小写
func NormalizeEmail(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return v
}

// ToNumber 数字字符串转为数字，无法转换时保持原值
func ToNumber(v any) any {
	if s, ok := v.(string); ok {
		if f, ok := toNumber(s); ok {
			return f
		}
	}
	return v
}

// ExpandDate YYYY-MM-DD 补全为 UTC 零点的 RFC3339，便于绑定到 time.Time
func ExpandDate(v any) any {
	if s, ok := v.(string); ok && len(s) == len("2006-01-02") {
		return s + "T00:00:00Z"
	}
	return v
}
