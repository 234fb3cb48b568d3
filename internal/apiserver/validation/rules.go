package validation

import (
	"regexp"

	"villas-admin/internal/shared/model"
)

var (
	usernameRegex   = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	nameRegex       = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	phoneRegex      = regexp.MustCompile(`^[+]?[1-9][0-9]{0,15}$`)
	clusterIDRegex  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	combinedIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+_[a-zA-Z0-9_-]+$`)

	// RE2 不支持前瞻断言，拆成三条
	lowerRegex = regexp.MustCompile(`[a-z]`)
	upperRegex = regexp.MustCompile(`[A-Z]`)
	digitRegex = regexp.MustCompile(`[0-9]`)
)

// StrongPassword 至少包含一个小写字母、一个大写字母和一个数字
func StrongPassword() Check {
	return All(Matches(lowerRegex), Matches(upperRegex), Matches(digitRegex))
}

const (
	msgEmail            = "Please provide a valid email address"
	msgPasswordLength   = "Password must be at least 6 characters long"
	msgPasswordStrength = "Password must contain at least one uppercase letter, one lowercase letter, and one number"
	msgUsernameLength   = "Username must be between 3 and 30 characters"
	msgUsernameChars    = "Username can only contain letters, numbers, and underscores"
)

// ============================================================================
// 认证
// ============================================================================

// Registration 注册
var Registration = RuleSet{
	{Field: "username", Sanitize: Trim, Check: Length(3, 30), Message: msgUsernameLength},
	{Field: "username", Check: Matches(usernameRegex), Message: msgUsernameChars},
	{Field: "email", Sanitize: NormalizeEmail, Check: IsEmail(), Message: msgEmail},
	{Field: "password", Check: Length(6, 0), Message: msgPasswordLength},
	{Field: "password", Check: StrongPassword(), Message: msgPasswordStrength},
}

// Login 登录
var Login = RuleSet{
	{Field: "email", Sanitize: NormalizeEmail, Check: IsEmail(), Message: msgEmail},
	{Field: "password", Check: NotEmpty(), Message: "Password is required"},
}

// ProfileUpdate 修改资料，字段均可选
var ProfileUpdate = RuleSet{
	{Field: "username", Optional: true, Sanitize: Trim, Check: Length(3, 30), Message: msgUsernameLength},
	{Field: "username", Optional: true, Check: Matches(usernameRegex), Message: msgUsernameChars},
	{Field: "email", Optional: true, Sanitize: NormalizeEmail, Check: IsEmail(), Message: msgEmail},
}

// ChangePassword 修改密码，新密码沿用注册规则
var ChangePassword = RuleSet{
	{Field: "currentPassword", Check: NotEmpty(), Message: "Current password is required"},
	{Field: "newPassword", Check: Length(6, 0), Message: msgPasswordLength},
	{Field: "newPassword", Check: StrongPassword(), Message: msgPasswordStrength},
}

// ============================================================================
// 留言
// ============================================================================

// Contact 公开提交留言
var Contact = RuleSet{
	{Field: "name", Sanitize: Trim, Check: Length(2, 100), Message: "Name must be between 2 and 100 characters"},
	{Field: "name", Check: Matches(nameRegex), Message: "Name can only contain letters and spaces"},
	{Field: "email", Sanitize: NormalizeEmail, Check: IsEmail(), Message: msgEmail},
	{Field: "phone", Check: Matches(phoneRegex), Message: "Please provide a valid phone number"},
	{Field: "message", Sanitize: Trim, Check: Length(10, 1000), Message: "Message must be between 10 and 1000 characters"},
	{Field: "interestedUnit", Optional: true, Sanitize: Trim, Check: Length(0, 200), Message: "Interested unit cannot exceed 200 characters"},
	{Field: "source", Optional: true, Check: IsIn(model.ContactSources), Message: "Invalid source value"},
}

// contactPatchRules 单条与批量修改共用，prefix 为字段所在对象
func contactPatchRules(prefix string) RuleSet {
	return RuleSet{
		{Field: prefix + "status", Optional: true, Check: IsIn(model.ContactStatuses), Message: "Invalid status value"},
		{Field: prefix + "priority", Optional: true, Check: IsIn(model.ContactPriorities), Message: "Invalid priority value"},
		{Field: prefix + "source", Optional: true, Check: IsIn(model.ContactSources), Message: "Invalid source value"},
		{Field: prefix + "salesComment", Optional: true, Sanitize: Trim, Check: Length(0, 500), Message: "Sales comment cannot exceed 500 characters"},
		{Field: prefix + "followUpDate", Optional: true, Sanitize: ExpandDate, Check: IsDate(), Message: "Follow-up date must be a valid date"},
		{Field: prefix + "tags", Optional: true, Check: IsStringArray(), Message: "Tags must be an array of strings"},
	}
}

// ContactID 路径中的留言 ID
var ContactID = RuleSet{
	{Field: "id", In: InPath, Check: IsDocumentID(), Message: "Invalid contact ID format"},
}

// ContactUpdate 管理员修改单条留言
var ContactUpdate = append(append(RuleSet{}, ContactID...), contactPatchRules("")...)

// BulkUpdate 批量修改，contactIds 由处理器单独检查
var BulkUpdate = contactPatchRules("updateData.")

// ============================================================================
// 地块
// ============================================================================

// Cluster 创建/更新地块
var Cluster = RuleSet{
	{Field: "clusterName", Sanitize: Trim, Check: Length(2, 100), Message: "Cluster name must be between 2 and 100 characters"},
	{Field: "clusterId", Sanitize: Trim, Check: Length(1, 50), Message: "Cluster ID must be between 1 and 50 characters"},
	{Field: "clusterId", Check: Matches(clusterIDRegex), Message: "Cluster ID can only contain letters, numbers, hyphens, and underscores"},
	{Field: "x", Sanitize: ToNumber, Check: IsNumeric(), Message: "X coordinate must be a number"},
	{Field: "y", Sanitize: ToNumber, Check: IsNumeric(), Message: "Y coordinate must be a number"},
	{Field: "description", Optional: true, Sanitize: Trim, Check: Length(0, 1000), Message: "Description cannot exceed 1000 characters"},
	{Field: "amenities", Optional: true, Check: IsStringArray(), Message: "Amenities must be an array of strings"},
	{Field: "villas", Check: IsArray(1), Message: "At least one villa is required"},
	{Field: "villas.*.id", Sanitize: Trim, Check: NotEmpty(), Message: "Villa ID is required"},
	{Field: "villas.*.size", Sanitize: ToNumber, Check: Positive(), Message: "Villa size must be a positive number"},
	{Field: "villas.*.type", Sanitize: Trim, Check: NotEmpty(), Message: "Villa type is required"},
	{Field: "villas.*.status", Optional: true, Check: IsIn(model.VillaStatuses), Message: "Invalid villa status"},
	{Field: "villas.*.price", Optional: true, Sanitize: ToNumber, Check: NumberAtLeast(0), Message: "Price cannot be negative"},
	{Field: "villas.*.bedrooms", Optional: true, Sanitize: ToNumber, Check: IsInt(1, 0), Message: "Must have at least 1 bedroom"},
	{Field: "villas.*.bathrooms", Optional: true, Sanitize: ToNumber, Check: IsInt(1, 0), Message: "Must have at least 1 bathroom"},
	{Field: "villas.*.description", Optional: true, Sanitize: Trim, Check: Length(0, 500), Message: "Description cannot exceed 500 characters"},
	{Field: "villas.*.features", Optional: true, Check: IsStringArray(), Message: "Features must be an array of strings"},
	{Field: "villas.*.images", Optional: true, Check: IsStringArray(), Message: "Images must be an array of strings"},
}

// ClusterList 地块列表：分页 + 别墅状态筛选
var ClusterList = append(RuleSet{
	{Field: "status", In: InQuery, Optional: true, Check: IsIn(model.VillaStatuses), Message: "Invalid villa status"},
}, Pagination...)

// VillaSearch 组合 ID 格式：clusterId_villaId
var VillaSearch = RuleSet{
	{Field: "combinedId", In: InPath, Check: Matches(combinedIDRegex), Message: "Combined ID must be in format: clusterId_villaId"},
}

// ============================================================================
// 分页
// ============================================================================

// Pagination 列表分页参数
var Pagination = RuleSet{
	{Field: "page", In: InQuery, Optional: true, Check: IsInt(1, 0), Message: "Page must be a positive integer"},
	{Field: "limit", In: InQuery, Optional: true, Check: IsInt(1, 100), Message: "Limit must be between 1 and 100"},
}
