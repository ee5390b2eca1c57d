package model

import (
	"fmt"
	"strings"
)

// Turn 会话中的一轮发言。
type Turn struct {
	Role    string `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

// Item 聚类的输入单元：消息、会话或用户。
// 对本流水线只读。
type Item interface {
	ItemID() string
	OrgID() string
	ProjectID() string
	Scope() Scope
	// Transcript 返回用于浓缩或展示的文本。
	Transcript() string
	// CondensePrompt 生成把该条目浓缩为一句话的提示，contextTurns 为可附带的前序轮次上限。
	CondensePrompt(instruction string, contextTurns int) string
}

// Composite 由子条目汇总而成的条目：先逐个浓缩 Parts，再用 RollupPrompt 汇总。
type Composite interface {
	Item
	Parts() []Item
	RollupPrompt(instruction string, summaries []string) string
}

// Owner 项目归属。
type Owner struct {
	Org     string `json:"org_id,omitempty" bson:"org_id,omitempty"`
	Project string `json:"project_id" bson:"project_id"`
}

func (o Owner) OrgID() string     { return o.Org }
func (o Owner) ProjectID() string { return o.Project }

// Message 一条用户消息，附带所在会话中之前的若干轮上下文。
type Message struct {
	Owner     `bson:",inline"`
	ID        string `json:"id" bson:"_id"`
	SessionID string `json:"session_id" bson:"session_id"`
	Role      string `json:"role" bson:"role"`
	Content   string `json:"content" bson:"content"`
	// Previous 按时间顺序排列的前序轮次。
	Previous []Turn `json:"previous,omitempty" bson:"previous,omitempty"`
}

func (m *Message) ItemID() string { return m.ID }
func (m *Message) Scope() Scope   { return ScopeMessages }

// Transcript 返回消息本身。
func (m *Message) Transcript() string {
	return formatTurns([]Turn{{Role: m.Role, Content: m.Content}})
}

// Context 返回最多 n 轮前序上下文，n <= 0 时不带上下文。
func (m *Message) Context(n int) string {
	if n <= 0 || len(m.Previous) == 0 {
		return ""
	}
	turns := m.Previous
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return formatTurns(turns)
}

func (m *Message) CondensePrompt(instruction string, contextTurns int) string {
	var sb strings.Builder
	if c := m.Context(contextTurns); c != "" {
		sb.WriteString("Previous turns of the conversation:\n")
		sb.WriteString(c)
		sb.WriteString("\n\n")
	}
	sb.WriteString("User message:\n")
	sb.WriteString(m.Transcript())
	fmt.Fprintf(&sb, "\n\nIn one sentence, describe the %s expressed in the user message.", instruction)
	return sb.String()
}

// Session 一次完整会话。
type Session struct {
	Owner    `bson:",inline"`
	ID       string `json:"id" bson:"_id"`
	UserID   string `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Messages []Turn `json:"messages" bson:"messages"`
}

func (s *Session) ItemID() string     { return s.ID }
func (s *Session) Scope() Scope       { return ScopeSessions }
func (s *Session) Transcript() string { return formatTurns(s.Messages) }

func (s *Session) CondensePrompt(instruction string, _ int) string {
	return fmt.Sprintf("Conversation:\n%s\n\nIn one sentence, describe the %s of the user in this conversation.",
		s.Transcript(), instruction)
}

// User 终端用户及其会话。
type User struct {
	Owner    `bson:",inline"`
	ID       string     `json:"id" bson:"_id"`
	Sessions []*Session `json:"sessions" bson:"sessions"`
}

func (u *User) ItemID() string { return u.ID }
func (u *User) Scope() Scope   { return ScopeUsers }

// Transcript 拼接用户的所有会话。
func (u *User) Transcript() string {
	parts := make([]string, 0, len(u.Sessions))
	for _, s := range u.Sessions {
		if t := s.Transcript(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n---\n")
}

var _ Composite = (*User)(nil)

// CondensePrompt 不经会话浓缩、直接基于全部会话文本的画像提示。
func (u *User) CondensePrompt(instruction string, _ int) string {
	return userPrompt(instruction, u.Transcript())
}

// Parts 返回非空会话。
func (u *User) Parts() []Item {
	parts := make([]Item, 0, len(u.Sessions))
	for _, s := range u.Sessions {
		if s != nil && s.Transcript() != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func (u *User) RollupPrompt(instruction string, summaries []string) string {
	lines := make([]string, len(summaries))
	for i, s := range summaries {
		lines[i] = "- " + s
	}
	return userPrompt(instruction, strings.Join(lines, "\n"))
}

func userPrompt(instruction, body string) string {
	return fmt.Sprintf("Summaries of the sessions of one user:\n%s\n\nIn one sentence, describe the persona of this user, focusing on their %s.",
		body, instruction)
}

// formatTurns 以 "role: content" 逐行拼接，跳过空内容。
func formatTurns(turns []Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		role := t.Role
		if role == "" {
			role = "user"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(content)
	}
	return sb.String()
}
