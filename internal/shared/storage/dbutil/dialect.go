// Package dbutil 提供数据库方言抽象和工具函数
//
// 通过 Dialect 接口屏蔽不同数据库（PostgreSQL、SQLite）的 SQL 差异，
// 使 repository 层可以编写与数据库无关的业务逻辑。
package dbutil

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// DriverType 数据库驱动类型
type DriverType string

const (
	DriverPostgres DriverType = "postgres"
	DriverSQLite   DriverType = "sqlite"
)

// Dialect 数据库方言接口
//
// 不同数据库的 SQL 语法差异通过该接口屏蔽：
//   - 占位符：PostgreSQL 用 $1, $2；SQLite 用 ?
//   - 布尔值：PostgreSQL 用 TRUE/FALSE；SQLite 用 1/0
//   - 唯一键冲突的错误形态不同
type Dialect interface {
	// DriverType 返回驱动类型标识
	DriverType() DriverType

	// Rebind 将 PostgreSQL 风格的占位符 ($1, $2, ...) 转换为目标数据库的占位符格式
	Rebind(query string) string

	// BooleanLiteral 返回布尔字面量
	BooleanLiteral(b bool) string

	// IsUniqueViolation 判断错误是否为唯一约束冲突
	IsUniqueViolation(err error) bool

	// AutoMigrate 自动创建数据库 Schema
	AutoMigrate(db *sql.DB) error
}

// pgPlaceholderRe 匹配 PostgreSQL 风格占位符 $1, $2, ...
var pgPlaceholderRe = regexp.MustCompile(`\$(\d+)`)

// pgCastRe 匹配 PostgreSQL 类型转换 ::type
var pgCastRe = regexp.MustCompile(`::(\w+)`)

// RebindToPositional 保持 $N 占位符不变（PostgreSQL 专用）
func RebindToPositional(query string) string {
	return query
}

// RebindToQuestion 将 $N 占位符转换为 ? （SQLite 专用）
//
// 要求占位符按出现顺序连续编号且不重复引用。
func RebindToQuestion(query string) string {
	return pgPlaceholderRe.ReplaceAllString(query, "?")
}

// StripPgCasts 去除 PostgreSQL 类型转换 (::varchar, ::text 等)
func StripPgCasts(query string) string {
	return pgCastRe.ReplaceAllString(query, "")
}

// PlaceholderList 生成从 start 开始的 PG 风格占位符列表，如 "$1, $2, $3"
func PlaceholderList(start, count int) string {
	parts := make([]string, count)
	for i := 0; i < count; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

// likeEscaper 转义 LIKE 通配符，配合 ESCAPE '\' 使用
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike 转义用户输入中的 LIKE 通配符
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ContainsPattern 生成大小写不敏感子串匹配的 LIKE 模式（调用方需对列做 LOWER）
func ContainsPattern(term string) string {
	return "%" + EscapeLike(strings.ToLower(term)) + "%"
}

// Conditions 动态 WHERE 条件构建器，自动分配 $N 占位符编号
type Conditions struct {
	clauses []string
	args    []interface{}
}

// Add 添加一个条件，format 中的每个 %s 被替换为下一个占位符
func (c *Conditions) Add(format string, args ...interface{}) {
	holders := make([]interface{}, len(args))
	for i := range args {
		holders[i] = c.Next()
		c.args = append(c.args, args[i])
	}
	c.clauses = append(c.clauses, fmt.Sprintf(format, holders...))
}

// AddRaw 添加不带参数的条件
func (c *Conditions) AddRaw(clause string) {
	c.clauses = append(c.clauses, clause)
}

// Next 返回下一个占位符（不绑定参数，调用方需随后 Bind）
func (c *Conditions) Next() string {
	return fmt.Sprintf("$%d", len(c.args)+1)
}

// Bind 追加一个参数并返回对应占位符
func (c *Conditions) Bind(arg interface{}) string {
	p := c.Next()
	c.args = append(c.args, arg)
	return p
}

// Where 返回 " WHERE ..." 子句（无条件时为空字符串）
func (c *Conditions) Where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// Args 返回已绑定的参数
func (c *Conditions) Args() []interface{} {
	return c.args
}
