package model

import (
	"errors"
	"time"
)

// Embedding 一个条目在 (模型, 指令) 下的向量。
// TaskID、SessionID、UserID 三者恰好设置一个。
type Embedding struct {
	ID          string    `json:"id" bson:"_id"`
	OrgID       string    `json:"org_id,omitempty" bson:"org_id,omitempty"`
	ProjectID   string    `json:"project_id" bson:"project_id"`
	TaskID      string    `json:"task_id,omitempty" bson:"task_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty" bson:"session_id,omitempty"`
	UserID      string    `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Model       string    `json:"model" bson:"model"`
	Instruction string    `json:"instruction" bson:"instruction"`
	Scope       Scope     `json:"scope" bson:"scope"`
	Text        string    `json:"text" bson:"text"`
	Embeddings  []float64 `json:"embeddings" bson:"embeddings"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

var (
	errNoOwner       = errors.New("embedding has no owner reference")
	errMultipleOwner = errors.New("embedding has more than one owner reference")
	errEmptyVector   = errors.New("embedding vector is empty")
)

// SetOwner 按粒度设置唯一的归属字段。
func (e *Embedding) SetOwner(scope Scope, ownerID string) {
	e.TaskID, e.SessionID, e.UserID = "", "", ""
	switch scope {
	case ScopeMessages:
		e.TaskID = ownerID
	case ScopeSessions:
		e.SessionID = ownerID
	case ScopeUsers:
		e.UserID = ownerID
	}
	e.Scope = scope
}

// OwnerID 返回被设置的归属 ID。
func (e *Embedding) OwnerID() string {
	switch {
	case e.TaskID != "":
		return e.TaskID
	case e.SessionID != "":
		return e.SessionID
	default:
		return e.UserID
	}
}

// OwnerField 返回粒度对应的归属字段名。
func OwnerField(scope Scope) string {
	switch scope {
	case ScopeMessages:
		return "task_id"
	case ScopeSessions:
		return "session_id"
	case ScopeUsers:
		return "user_id"
	}
	return ""
}

// Validate 检查恰好一个归属字段被设置且向量非空。
func (e *Embedding) Validate() error {
	n := 0
	for _, v := range []string{e.TaskID, e.SessionID, e.UserID} {
		if v != "" {
			n++
		}
	}
	switch {
	case n == 0:
		return errNoOwner
	case n > 1:
		return errMultipleOwner
	case len(e.Embeddings) == 0:
		return errEmptyVector
	}
	return nil
}

// Fingerprint 缓存键 (归属 ID, 模型, 指令)。
type Fingerprint struct {
	OwnerID     string
	Model       string
	Instruction string
}

// Fingerprint 返回该向量的缓存键。
func (e *Embedding) Fingerprint() Fingerprint {
	return Fingerprint{OwnerID: e.OwnerID(), Model: e.Model, Instruction: e.Instruction}
}
