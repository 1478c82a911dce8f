package xbase

// TrafficType 描述资源的流量方向。
type TrafficType int32

const (
	// Inbound 入站流量（对外提供的接口被调用）。
	// 系统自适应保护只作用于入站流量。
	Inbound TrafficType = iota

	// Outbound 出站流量（调用下游依赖）。
	Outbound
)

func (t TrafficType) String() string {
	switch t {
	case Inbound:
		return "Inbound"
	case Outbound:
		return "Outbound"
	default:
		return "Undefined"
	}
}

// ResourceWrapper 资源标识，值语义，按值相等作为各类按资源状态的键。
type ResourceWrapper struct {
	name        string
	trafficType TrafficType
}

// NewResourceWrapper 创建资源标识。
func NewResourceWrapper(name string, trafficType TrafficType) *ResourceWrapper {
	return &ResourceWrapper{name: name, trafficType: trafficType}
}

// Name 返回资源名。
func (r *ResourceWrapper) Name() string {
	return r.name
}

// Classification 返回流量方向。
func (r *ResourceWrapper) Classification() TrafficType {
	return r.trafficType
}

func (r *ResourceWrapper) String() string {
	return "ResourceWrapper{name=" + r.name + ", trafficType=" + r.trafficType.String() + "}"
}
