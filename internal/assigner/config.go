package assigner

import "fmt"

// Mode: 约束的启用方式
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeSoft     Mode = "soft"
	ModeHard     Mode = "hard"
)

// Config: 单次分配所使用的约束配置
// 覆盖约束、归属排除、配额和时间冲突在实践中始终保持 hard，
// 这里仍然保留开关是为了实验时可以单独关闭某条约束观察影响
type Config struct {
	Coverage       Mode `json:"coverage"`
	Ownership      Mode `json:"ownership"`
	Unavailability Mode `json:"unavailability"`
	QuotaLimit     Mode `json:"quotaLimit"`
	TimeConflict   Mode `json:"timeConflict"`
	OwnerPresence  Mode `json:"ownerPresence"`
	NoGaps         Mode `json:"noGaps"`
	// 同职称均衡只支持 disabled/hard，软模式需要整数偏差变量，
	// 布尔约束表达不了，所以它也没有对应的罚分权重
	EqualByGrade   Mode `json:"equalByGrade"`

	// 当天本来就有不可用时段的教师是否豁免当天的连排约束
	// 不可用本身就会造成空档，再惩罚一次没有意义
	ExemptUnavailableFromGaps bool `json:"exemptUnavailableFromGaps"`

	UnavailabilityPenalty int `json:"unavailabilityPenalty"` // 被松弛教师违反不可用时段的罚分
	ConflictPenalty       int `json:"conflictPenalty"`       // 稀缺场次的罚分系数
	OwnerPresenceBonus    int `json:"ownerPresenceBonus"`    // 出题教师留守同一时段的奖励
	GapPenalty            int `json:"gapPenalty"`            // 单个空档的罚分
}

func DefaultConfig() Config {
	return Config{
		Coverage:                  ModeHard,
		Ownership:                 ModeHard,
		Unavailability:            ModeHard,
		QuotaLimit:                ModeHard,
		TimeConflict:              ModeHard,
		OwnerPresence:             ModeSoft,
		NoGaps:                    ModeSoft,
		EqualByGrade:              ModeDisabled,
		ExemptUnavailableFromGaps: true,
		UnavailabilityPenalty:     1000,
		ConflictPenalty:           1,
		OwnerPresenceBonus:        2,
		GapPenalty:                5,
	}
}

// PresetConfig 返回预设的约束组合，作为一次分配的起点
func PresetConfig(name string) (Config, error) {
	cfg := DefaultConfig()

	switch name {
	case "", "default":
	case "strict":
		cfg.OwnerPresence = ModeHard
		cfg.NoGaps = ModeHard
		cfg.EqualByGrade = ModeHard
	case "relaxed":
		cfg.OwnerPresence = ModeDisabled
		cfg.NoGaps = ModeDisabled
	case "fairness-optimized":
		cfg.EqualByGrade = ModeHard
	default:
		return cfg, fmt.Errorf("未知的约束预设: %s", name)
	}

	return cfg, nil
}
