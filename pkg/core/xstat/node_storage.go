package xstat

import (
	"sort"
	"sync"

	"github.com/omeyang/xguard/pkg/core/xbase"
)

// TotalInboundResourceName 全局入站聚合节点的保留资源名，
// 系统自适应保护以它为数据源。
const TotalInboundResourceName = "__total_inbound_traffic__"

// ResourceNode 带资源标识的统计节点。
type ResourceNode struct {
	BaseStatNode
	resourceName string
}

// NewResourceNode 创建资源统计节点。
func NewResourceNode(resourceName string) *ResourceNode {
	return &ResourceNode{
		BaseStatNode: *NewBaseStatNode(),
		resourceName: resourceName,
	}
}

// ResourceName 返回资源名。
func (n *ResourceNode) ResourceName() string {
	return n.resourceName
}

// NodeStorage 进程内的按资源节点注册表。显式构造、按实例注入，
// 测试各自构造隔离的实例而非共享全局状态。
//
// 读路径（GetNode）走读锁；创建只发生在每个资源的首次流量上，
// 写锁竞争可忽略。
type NodeStorage struct {
	mu    sync.RWMutex
	nodes map[string]*ResourceNode

	inboundOnce sync.Once
	inbound     *ResourceNode
}

// NewNodeStorage 创建空注册表。
func NewNodeStorage() *NodeStorage {
	return &NodeStorage{nodes: make(map[string]*ResourceNode)}
}

// GetNode 返回资源的统计节点，不存在时为 nil。
func (s *NodeStorage) GetNode(resourceName string) *ResourceNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[resourceName]
}

// GetOrCreateNode 返回资源的统计节点，首次访问时创建。
func (s *NodeStorage) GetOrCreateNode(resourceName string) *ResourceNode {
	s.mu.RLock()
	node, ok := s.nodes[resourceName]
	s.mu.RUnlock()
	if ok {
		return node
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if node, ok = s.nodes[resourceName]; ok {
		return node
	}
	node = NewResourceNode(resourceName)
	s.nodes[resourceName] = node
	return node
}

// InboundNode 返回全局入站聚合节点（惰性创建）。
func (s *NodeStorage) InboundNode() *ResourceNode {
	s.inboundOnce.Do(func() {
		s.inbound = NewResourceNode(TotalInboundResourceName)
	})
	return s.inbound
}

// ResourceNames 返回已有统计节点的资源名（字典序），供指标导出遍历。
func (s *NodeStorage) ResourceNames() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.nodes))
	for name := range s.nodes {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

var _ xbase.StatNode = (*ResourceNode)(nil)
