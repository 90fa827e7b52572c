package document

import (
	"errors"
	"sort"
	"sync"

	"github.com/Team-KimBanana/kimbanana-front-sub000/internal/models"
)

// 文档不变量违例（在变更前拒绝，绝不部分生效）
var (
	ErrLastSlide      = errors.New("cannot remove the last remaining slide")
	ErrSlideNotFound  = errors.New("slide not found")
	ErrInvalidReorder = errors.New("reorder sequence is not a permutation of current slides")
)

// slideEntry 内部条目，arrival 用于同序号时的稳定排序
type slideEntry struct {
	id      string
	order   int
	arrival int64
}

// Store 内存中的幻灯片文档存储
// 只负责文档状态本身，不感知传输层和历史快照。
type Store struct {
	mu       sync.Mutex
	slides   []slideEntry
	contents map[string]models.SlideContent
	current  string
	arrival  int64
}

// NewStore 创建文档存储
func NewStore() *Store {
	return &Store{
		contents: make(map[string]models.SlideContent),
	}
}

// UpsertSlide 插入或更新幻灯片的序号
// 新幻灯片以空内容入库；插入后按序号稳定排序并重新压缩为 1..N。
func (s *Store) UpsertSlide(id string, order int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.slides {
		if s.slides[i].id == id {
			s.slides[i].order = order
			s.renumber()
			return
		}
	}

	s.arrival++
	s.slides = append(s.slides, slideEntry{id: id, order: order, arrival: s.arrival})
	if _, ok := s.contents[id]; !ok {
		s.contents[id] = models.EmptyContent()
	}
	if s.current == "" {
		s.current = id
	}
	s.renumber()
}

// SetContent 整页替换幻灯片内容
// 未知幻灯片自动补到末尾（内容消息可能先于结构事件到达，协议自愈）。
func (s *Store) SetContent(id string, content models.SlideContent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists(id) {
		s.arrival++
		s.slides = append(s.slides, slideEntry{id: id, order: len(s.slides) + 1, arrival: s.arrival})
		if s.current == "" {
			s.current = id
		}
		s.renumber()
	}
	s.contents[id] = content.Normalize()
}

// Get 读取幻灯片内容（返回独立副本）
func (s *Store) Get(id string) (models.SlideContent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, ok := s.contents[id]
	if !ok {
		return models.SlideContent{}, false
	}
	return content.Clone(), true
}

// RemoveSlide 删除幻灯片
// 删除当前查看的幻灯片时选择回退页：优先旧顺序中的前一张，其次第一张。
// 删除最后一张剩余幻灯片被拒绝（文档至少保留一张）。
func (s *Store) RemoveSlide(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.slides {
		if s.slides[i].id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrSlideNotFound
	}
	if len(s.slides) == 1 {
		return ErrLastSlide
	}

	if s.current == id {
		if idx > 0 {
			s.current = s.slides[idx-1].id
		} else {
			s.current = s.slides[1].id
		}
	}

	s.slides = append(s.slides[:idx], s.slides[idx+1:]...)
	delete(s.contents, id)
	s.renumber()
	return nil
}

// Reorder 按给定序列重排幻灯片
// 序列必须恰好是当前幻灯片集合的一个排列；序号严格按序列赋 1..N，
// 不信任外部传入的 order 值。
func (s *Store) Reorder(orderedIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(orderedIDs) != len(s.slides) {
		return ErrInvalidReorder
	}
	pos := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		if _, dup := pos[id]; dup {
			return ErrInvalidReorder
		}
		if !s.exists(id) {
			return ErrInvalidReorder
		}
		pos[id] = i + 1
	}

	for i := range s.slides {
		s.slides[i].order = pos[s.slides[i].id]
	}
	sort.SliceStable(s.slides, func(a, b int) bool {
		return s.slides[a].order < s.slides[b].order
	})
	return nil
}

// ReplaceAll 用权威完整列表整体替换幻灯片集合
// 携带内容的条目写入新内容；未携带内容的条目保留原内容（没有则补空）。
// 当前查看页不在新集合中时回退到新集合的第一张，集合为空则无当前页。
// 返回替换后的当前页 ID。
func (s *Store) ReplaceAll(slides []models.StructureSlide) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldContents := s.contents
	s.slides = s.slides[:0]
	s.contents = make(map[string]models.SlideContent, len(slides))

	for _, sl := range slides {
		s.arrival++
		s.slides = append(s.slides, slideEntry{id: sl.SlideID, order: sl.Order, arrival: s.arrival})
		switch {
		case sl.Content != nil:
			s.contents[sl.SlideID] = sl.Content.Normalize()
		default:
			if prev, ok := oldContents[sl.SlideID]; ok {
				s.contents[sl.SlideID] = prev
			} else {
				s.contents[sl.SlideID] = models.EmptyContent()
			}
		}
	}
	s.renumber()

	if !s.exists(s.current) {
		if len(s.slides) > 0 {
			s.current = s.slides[0].id
		} else {
			s.current = ""
		}
	}
	return s.current
}

// Slides 返回按序号排列的幻灯片快照
func (s *Store) Slides() []models.Slide {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Slide, len(s.slides))
	for i, e := range s.slides {
		out[i] = models.Slide{ID: e.id, Order: e.order}
	}
	return out
}

// Current 当前查看的幻灯片 ID（无幻灯片时为空串）
func (s *Store) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetCurrent 切换当前查看的幻灯片
func (s *Store) SetCurrent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists(id) {
		return ErrSlideNotFound
	}
	s.current = id
	return nil
}

// Len 幻灯片数量
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slides)
}

// exists 调用方必须持有锁
func (s *Store) exists(id string) bool {
	for i := range s.slides {
		if s.slides[i].id == id {
			return true
		}
	}
	return false
}

// renumber 稳定排序后压缩序号为连续的 1..N，调用方必须持有锁
// 同序号并列按到达先后排序；重排提交之后不允许残留并列。
func (s *Store) renumber() {
	sort.SliceStable(s.slides, func(a, b int) bool {
		if s.slides[a].order != s.slides[b].order {
			return s.slides[a].order < s.slides[b].order
		}
		return s.slides[a].arrival < s.slides[b].arrival
	})
	for i := range s.slides {
		s.slides[i].order = i + 1
	}
}
