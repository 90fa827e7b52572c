package models

// CompositeIDSeparator 复合历史 ID 的分隔符
// 上游可能对同一个基础 historyId 产生多个修订，因此对外暴露的目录键
// 是 historyId + "__" + lastRevisionISO 的复合键。
const CompositeIDSeparator = "__"

// HistoryEntry 历史快照目录条目
type HistoryEntry struct {
	HistoryID    string `json:"historyId"`
	LastRevision string `json:"lastRevisionISO"`
}

// CompositeID 返回唯一的复合键（基础 HistoryID 不保证唯一）
func (e HistoryEntry) CompositeID() string {
	return e.HistoryID + CompositeIDSeparator + e.LastRevision
}

// HistorySlide 历史快照中的一张幻灯片（只读）
type HistorySlide struct {
	SlideID string       `json:"slideId"`
	Order   int          `json:"order"`
	Content SlideContent `json:"content"`
}

// RestorationMapping 恢复映射：用历史幻灯片内容替换目标现场幻灯片
// 同一 TargetSlideID 在映射列表中至多出现一次（后选覆盖先选）。
type RestorationMapping struct {
	TargetSlideID  string `json:"targetSlideId"`
	HistorySlideID string `json:"historySlideId"`
}

// 恢复请求类型
const (
	RestoreTypePartial = "partial"
	RestoreTypeAll     = "all"
)

// RestorationRequest 提交给后端的恢复请求体
type RestorationRequest struct {
	Type             string               `json:"type"`
	HistoryID        string               `json:"historyId"`
	RequestingUserID string               `json:"requestingUserId"`
	Mappings         []RestorationMapping `json:"mappings,omitempty"`
}
