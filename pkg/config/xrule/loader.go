package xrule

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/omeyang/xguard/pkg/core/xcircuit"
	"github.com/omeyang/xguard/pkg/core/xflow"
	"github.com/omeyang/xguard/pkg/core/xhotspot"
	"github.com/omeyang/xguard/pkg/core/xsystem"
	"github.com/omeyang/xguard/pkg/xguard"
)

// Format 规则文件格式。
type Format string

const (
	// FormatYAML YAML 格式。
	FormatYAML Format = "yaml"
	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// RuleFile 规则文件的整体结构，四类规则各占一节，缺失的节视为空表。
type RuleFile struct {
	// Flow 流控规则。
	Flow []*xflow.Rule `json:"flow,omitempty" koanf:"flow"`
	// CircuitBreaker 熔断规则。
	CircuitBreaker []*xcircuit.Rule `json:"circuitBreaker,omitempty" koanf:"circuitBreaker"`
	// System 系统保护规则。
	System []*xsystem.Rule `json:"system,omitempty" koanf:"system"`
	// HotSpot 热点参数规则。
	HotSpot []*xhotspot.Rule `json:"hotSpot,omitempty" koanf:"hotSpot"`
}

// Validate 逐节校验全部规则。
func (f *RuleFile) Validate() error {
	for _, r := range f.Flow {
		if err := xflow.ValidateRule(r); err != nil {
			return err
		}
	}
	for _, r := range f.CircuitBreaker {
		if err := xcircuit.ValidateRule(r); err != nil {
			return err
		}
	}
	for _, r := range f.System {
		if err := xsystem.ValidateRule(r); err != nil {
			return err
		}
	}
	for _, r := range f.HotSpot {
		if err := xhotspot.ValidateRule(r); err != nil {
			return err
		}
	}
	return nil
}

// Load 从文件读取并解析规则，格式按扩展名检测（.yaml/.yml/.json）。
func Load(path string) (*RuleFile, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return Parse(data, format)
}

// Parse 从字节数据解析规则，适用于 K8s ConfigMap 等场景。
func Parse(data []byte, format Format) (*RuleFile, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return nil, ErrUnsupportedFormat
	}

	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}

	f := &RuleFile{}
	if err := k.UnmarshalWithConf("", f, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return f, nil
}

// Apply 把规则文件应用到 Guard。先整体校验再逐节载入，
// 校验失败时 Guard 的任何一节都不被改动。
func Apply(g *xguard.Guard, f *RuleFile) error {
	if g == nil {
		return ErrNilGuard
	}
	if f == nil {
		return ErrNilRuleFile
	}
	if err := f.Validate(); err != nil {
		return err
	}

	if err := g.LoadFlowRules(f.Flow); err != nil {
		return err
	}
	if err := g.LoadCircuitRules(f.CircuitBreaker); err != nil {
		return err
	}
	if err := g.LoadSystemRules(f.System); err != nil {
		return err
	}
	return g.LoadHotSpotRules(f.HotSpot)
}

// LoadAndApply 读取规则文件并应用到 Guard。
func LoadAndApply(g *xguard.Guard, path string) error {
	f, err := Load(path)
	if err != nil {
		return err
	}
	return Apply(g, f)
}

func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}
