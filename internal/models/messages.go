package models

// 结构事件种类（封闭集合；未知种类由处理器记录日志后忽略）
const (
	StructureKindAdded    = "added"
	StructureKindReplaced = "replaced"
	StructureKindDeleted  = "deleted"
)

// StructureSlide 结构事件中携带的幻灯片条目
// Content 为空指针时表示该幻灯片内容未变化（或由接收方补空内容）。
type StructureSlide struct {
	SlideID string        `json:"slideId"`
	Order   int           `json:"order"`
	Content *SlideContent `json:"content,omitempty"`
}

// StructureMessage 结构主题上的消息
// added: 使用 SlideID/Order；replaced/deleted: 使用 Slides（权威完整列表）。
type StructureMessage struct {
	Kind    string           `json:"kind"`
	SlideID string           `json:"slideId,omitempty"`
	Order   int              `json:"order,omitempty"`
	Slides  []StructureSlide `json:"slides,omitempty"`
}

// ContentMessage 内容主题上的消息（整页快照，非增量）
type ContentMessage struct {
	SlideID     string       `json:"slideId"`
	SenderID    string       `json:"senderId"`
	RevisionISO string       `json:"revisionISO"`
	Order       int          `json:"order"`
	Content     SlideContent `json:"content"`
}
