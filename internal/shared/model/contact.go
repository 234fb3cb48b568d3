package model

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// ============================================================================
// 枚举
// ============================================================================

// ContactStatus 跟进状态
type ContactStatus string

const (
	ContactPending    ContactStatus = "Pending"
	ContactInProgress ContactStatus = "In Progress"
	ContactResolved   ContactStatus = "Resolved"
	ContactCancelled  ContactStatus = "Cancelled"
)

// ContactStatuses 所有合法的跟进状态
var ContactStatuses = []ContactStatus{ContactPending, ContactInProgress, ContactResolved, ContactCancelled}

// ContactPriority 优先级
type ContactPriority string

const (
	PriorityLow    ContactPriority = "Low"
	PriorityMedium ContactPriority = "Medium"
	PriorityHigh   ContactPriority = "High"
	PriorityUrgent ContactPriority = "Urgent"
)

// ContactPriorities 所有合法的优先级
var ContactPriorities = []ContactPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// ContactSource 来源渠道
type ContactSource string

const (
	SourceWebsite  ContactSource = "Website"
	SourcePhone    ContactSource = "Phone"
	SourceEmail    ContactSource = "Email"
	SourceWalkIn   ContactSource = "Walk-in"
	SourceReferral ContactSource = "Referral"
)

// ContactSources 所有合法的来源
var ContactSources = []ContactSource{SourceWebsite, SourcePhone, SourceEmail, SourceWalkIn, SourceReferral}

func (s ContactStatus) Valid() bool   { return contains(ContactStatuses, s) }
func (p ContactPriority) Valid() bool { return contains(ContactPriorities, p) }
func (s ContactSource) Valid() bool   { return contains(ContactSources, s) }

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ============================================================================
// Contact
// ============================================================================

// ActorSnapshot 最后一次修改者的快照
//
// 冗余保存 username/email，用户改名后历史记录不变。
type ActorSnapshot struct {
	Username string `json:"username" bson:"username"`
	Email    string `json:"email" bson:"email"`
	UserID   string `json:"userId" bson:"userId"`
}

// Contact 客户咨询
type Contact struct {
	ID             string          `json:"id" bson:"_id" db:"id"`
	Name           string          `json:"name" bson:"name" db:"name"`
	Email          string          `json:"email" bson:"email" db:"email"`
	Phone          string          `json:"phone" bson:"phone" db:"phone"`
	InterestedUnit string          `json:"interestedUnit,omitempty" bson:"interestedUnit,omitempty" db:"interested_unit"`
	Message        string          `json:"message" bson:"message" db:"message"`
	Status         ContactStatus   `json:"status" bson:"status" db:"status"`
	Priority       ContactPriority `json:"priority" bson:"priority" db:"priority"`
	Source         ContactSource   `json:"source" bson:"source" db:"source"`
	UpdatedBy      *ActorSnapshot  `json:"updatedBy,omitempty" bson:"updatedBy,omitempty" db:"updated_by"`
	SalesComment   string          `json:"salesComment,omitempty" bson:"salesComment,omitempty" db:"sales_comment"`
	FollowUpDate   *time.Time      `json:"followUpDate,omitempty" bson:"followUpDate,omitempty" db:"follow_up_date"`
	Tags           []string        `json:"tags" bson:"tags" db:"tags"`
	CreatedAt      time.Time       `json:"createdAt" bson:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" bson:"updatedAt" db:"updated_at"`
}

// ApplyDefaults 填充新建留言的默认值
func (c *Contact) ApplyDefaults() {
	if c.Status == "" {
		c.Status = ContactPending
	}
	if c.Priority == "" {
		c.Priority = PriorityMedium
	}
	if c.Source == "" {
		c.Source = SourceWebsite
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
}

// ContactSummary 公开提交后回显的摘要
type ContactSummary struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	InterestedUnit string          `json:"interestedUnit,omitempty"`
	Status         ContactStatus   `json:"status"`
	Priority       ContactPriority `json:"priority"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Summary 生成摘要
func (c *Contact) Summary() ContactSummary {
	return ContactSummary{
		ID:             c.ID,
		Name:           c.Name,
		Email:          c.Email,
		Phone:          c.Phone,
		InterestedUnit: c.InterestedUnit,
		Status:         c.Status,
		Priority:       c.Priority,
		CreatedAt:      c.CreatedAt,
	}
}

// ContactPatch 管理员可修改的字段，nil 表示不修改
//
// UpdatedBy/UpdatedAt 由调用方在写入前盖章，每次修改都会覆盖。
type ContactPatch struct {
	Status       *ContactStatus   `json:"status,omitempty"`
	Priority     *ContactPriority `json:"priority,omitempty"`
	Source       *ContactSource   `json:"source,omitempty"`
	SalesComment *string          `json:"salesComment,omitempty"`
	FollowUpDate *time.Time       `json:"followUpDate,omitempty"`
	Tags         []string         `json:"tags,omitempty"`

	UpdatedBy ActorSnapshot `json:"-"`
	UpdatedAt time.Time     `json:"-"`
}

// Stamp 记录修改者与时间
func (p *ContactPatch) Stamp(actor ActorSnapshot, now time.Time) {
	p.UpdatedBy = actor
	p.UpdatedAt = now
}

// Apply 将补丁应用到留言上
func (p *ContactPatch) Apply(c *Contact) {
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Priority != nil {
		c.Priority = *p.Priority
	}
	if p.Source != nil {
		c.Source = *p.Source
	}
	if p.SalesComment != nil {
		c.SalesComment = *p.SalesComment
	}
	if p.FollowUpDate != nil {
		t := *p.FollowUpDate
		c.FollowUpDate = &t
	}
	if p.Tags != nil {
		c.Tags = p.Tags
	}
	actor := p.UpdatedBy
	c.UpdatedBy = &actor
	c.UpdatedAt = p.UpdatedAt
}

// ============================================================================
// 统计
// ============================================================================

// GroupCount 分组计数（_id 为分组键）
type GroupCount struct {
	ID    string `json:"_id" bson:"_id"`
	Count int    `json:"count" bson:"count"`
}

// StatusTotals 按状态汇总，固定包含 total/pending/inProgress/resolved/cancelled
type StatusTotals map[string]int

// NewStatusTotals 由状态分组计数构造汇总
func NewStatusTotals(groups []GroupCount) StatusTotals {
	t := StatusTotals{"total": 0}
	for _, s := range ContactStatuses {
		t[StatsKey(string(s))] = 0
	}
	for _, g := range groups {
		t[StatsKey(g.ID)] += g.Count
		t["total"] += g.Count
	}
	return t
}

// StatsKey 将状态标签转换为统计键："In Progress" → "inProgress"
func StatsKey(label string) string {
	words := strings.Fields(label)
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(words[0]))
	for _, w := range words[1:] {
		r, size := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(w[size:])
	}
	return b.String()
}

// ContactStats 留言统计面板
type ContactStats struct {
	StatusStats    StatusTotals `json:"statusStats"`
	PriorityStats  []GroupCount `json:"priorityStats"`
	SourceStats    []GroupCount `json:"sourceStats"`
	RecentActivity []GroupCount `json:"recentActivity"`
}
